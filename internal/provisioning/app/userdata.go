package app

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// udevRules makes interfaces hot-plugged by a VLAN attach come up with DHCP.
const udevRules = `#!/bin/sh
cat > /etc/udev/rules.d/99-oscp-hotplug.rules <<'RULES'
ACTION=="add", SUBSYSTEM=="net", KERNEL!="lo", RUN+="/sbin/dhclient -nw $name"
RULES
udevadm control --reload-rules
`

// buildUserData appends the udev rules to the caller's user data when
// autoUdev is set.
func buildUserData(userData string, autoUdev bool) string {
	if !autoUdev {
		return userData
	}
	if userData == "" {
		return udevRules
	}
	return strings.TrimRight(userData, "\n") + "\n" + udevRules
}

// validatePublicKey checks that key is a single OpenSSH authorized key.
func validatePublicKey(key string) error {
	if _, _, _, rest, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("invalid key pair public key: %w", err)
	} else if strings.TrimSpace(string(rest)) != "" {
		return fmt.Errorf("invalid key pair public key: more than one key given")
	}
	return nil
}
