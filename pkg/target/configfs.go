package target

import (
	"golang.org/x/sys/unix"
)

// configfsMagic is the f_type of a mounted configfs (CONFIGFS_MAGIC).
const configfsMagic = 0x62656570

// configfsMount is where the kernel target subsystem surfaces its
// object tree.
const configfsMount = "/sys/kernel/config"

// ConfigFSMounted reports whether configfs is mounted at the standard
// location. Without it there is no kernel target tree to converge and
// the daemon falls back to config-only mode.
func ConfigFSMounted() bool {
	var st unix.Statfs_t
	if err := unix.Statfs(configfsMount, &st); err != nil {
		return false
	}
	return st.Type == configfsMagic
}

// Privileged reports whether the process runs with the privileges the
// kernel requires for target configuration changes.
func Privileged() bool {
	return unix.Geteuid() == 0
}
