package memmap

type Policy int

const (
	Policy_Invalid Policy = iota
	Policy_HostOnly
	Policy_ProcessOnly
	Policy_Mirror
)

var policyNames = map[Policy]string{
	Policy_HostOnly:    "HostOnly",
	Policy_ProcessOnly: "ProcessOnly",
	Policy_Mirror:      "Mirror",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "<invalid policy>"
}

func (p Policy) valid() bool {
	_, ok := policyNames[p]
	return ok
}
