//go:build linux

package scan

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"
)

// ownership resolves the owner and group names from the underlying stat.
// Lookup failures degrade to the numeric id, never to an error.
func ownership(info os.FileInfo) (string, string) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "unknown", "unknown"
	}
	owner := strconv.FormatUint(uint64(st.Uid), 10)
	group := strconv.FormatUint(uint64(st.Gid), 10)
	if u, err := user.LookupId(owner); err == nil {
		owner = u.Username
	}
	if g, err := user.LookupGroupId(group); err == nil {
		group = g.Name
	}
	return owner, group
}

// fileTimes extracts access and change times; creation time is not portable
// so the change time stands in for it.
func fileTimes(info os.FileInfo) (accessed, created time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	accessed = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	created = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	return accessed, created
}
