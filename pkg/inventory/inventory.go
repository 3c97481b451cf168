// Package inventory models the external inventory service boundary
// described in SPEC_FULL.md §6: "consumes schema.categories.usernotification
// .devicetypes (list of gateway kinds) and devices (uuid -> {devicetype,
// name, ...}); any device whose devicetype is in the kinds list becomes a
// gateway." The real service lives behind the message bus and is out of
// scope (SPEC_FULL.md §1); Client is the small interface the gateway-table
// refresh in cmd/securityd depends on instead.
package inventory

// Device is one inventory record relevant to gateway discovery.
type Device struct {
	UUID       string
	DeviceType string
	Name       string
}

// Client answers the two queries this module needs from the inventory
// service: the set of device-types that count as notification gateways, and
// the current device table to filter against them.
type Client interface {
	// GatewayDeviceTypes returns schema.categories.usernotification.devicetypes.
	GatewayDeviceTypes() ([]string, error)
	// Devices returns every known inventory device.
	Devices() ([]Device, error)
}

// Fake is an in-memory Client for tests and single-process deployments with
// no live inventory service, matching the teacher's preference for
// hand-written stubs over a mocking framework.
type Fake struct {
	Kinds   []string
	Records []Device
}

// NewFake seeds a Fake with the four gateway kinds SPEC_FULL.md §3/§4.8
// names, ready to have Records appended by a test.
func NewFake() *Fake {
	return &Fake{
		Kinds: []string{"smsgateway", "smtpgateway", "twittergateway", "pushgateway"},
	}
}

func (f *Fake) GatewayDeviceTypes() ([]string, error) {
	return f.Kinds, nil
}

func (f *Fake) Devices() ([]Device, error) {
	return f.Records, nil
}

// Gateways filters devices down to those whose DeviceType is one of kinds,
// returning a uuid -> devicetype table — the shape AlertGatewayTable takes.
func Gateways(client Client) (map[string]string, error) {
	kinds, err := client.GatewayDeviceTypes()
	if err != nil {
		return nil, err
	}
	kindSet := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}

	devices, err := client.Devices()
	if err != nil {
		return nil, err
	}

	table := make(map[string]string)
	for _, d := range devices {
		if _, ok := kindSet[d.DeviceType]; ok {
			table[d.UUID] = d.DeviceType
		}
	}
	return table, nil
}
