package osutils

import (
	"fmt"
	"os"
)

// hostRootEnvVar names the environment variable an in-container hostd
// process uses to locate the host's root filesystem, bind-mounted into the
// container at a well-known path by its launcher.
const hostRootEnvVar = "HOSTD_HOST_ROOT"

// containerMarkerPath existing means the current process is running inside
// a container rather than directly on the host.
const containerMarkerPath = "/run/.containerenv"

// ResolveHostRoot returns the filesystem prefix under which host paths
// should be resolved: "/" when running directly on the host, or the
// bind-mounted host root when running inside a container (§9's "container-
// vs-host root path resolution"). Its only caller is the clean-install
// safety-override check; the datastore path is not resolved through it.
func ResolveHostRoot() (string, error) {
	if root := os.Getenv(hostRootEnvVar); root != "" {
		return root, nil
	}
	if _, err := os.Stat(containerMarkerPath); err == nil {
		return "", fmt.Errorf("running in a container but %s is not set", hostRootEnvVar)
	}
	return "/", nil
}

// JoinHostPath resolves a host-relative absolute path against the detected
// host root.
func JoinHostPath(hostRoot, path string) string {
	if hostRoot == "" || hostRoot == "/" {
		return path
	}
	return hostRoot + path
}
