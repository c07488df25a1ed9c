package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID keys the protected machine ID.
const AppID = "softuart"

// DeviceIDLen is the length of device IDs derived from the machine ID.
const DeviceIDLen = 12

// MachineID retrieves a stable ID identifying the machine for this app.
// It falls back to the host name when the machine ID isn't available.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		if len(id) > DeviceIDLen {
			id = id[:DeviceIDLen]
		}
		return id
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "softuart"
}
