package interaction

import (
	"strconv"
	"strings"

	"github.com/newtron-network/devapi/pkg/util"
)

// MaxLoopbackNumber is the highest loopback interface number IOS-XR accepts.
const MaxLoopbackNumber = 2147483647

// Request field names, as they appear in API payloads and error bodies.
const (
	FieldLoopbackNumber = "loopback_number"
	FieldIPAddress      = "ip_address"
	FieldSubnetMask     = "subnet_mask"
)

// LoopbackIntent describes the loopback interface to create.
type LoopbackIntent struct {
	Number     int    `json:"loopback_number"`
	IPAddress  string `json:"ip_address"`
	SubnetMask string `json:"subnet_mask"`
}

// Validate checks every field and reports all failures at once.
func (i LoopbackIntent) Validate() error {
	errs := util.FieldErrors{}
	errs.Add(i.Number >= 0 && i.Number <= MaxLoopbackNumber, FieldLoopbackNumber,
		"Ensure this value is between 0 and 2147483647.")
	errs.Add(util.IsValidIPv4(i.IPAddress), FieldIPAddress, "Enter a valid IPv4 address.")
	errs.Add(util.IsValidSubnetMask(i.SubnetMask), FieldSubnetMask, "Enter a valid subnet mask.")
	return errs.Build()
}

// ParseLoopbackNumber parses a loopback number taken from a request path.
func ParseLoopbackNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, util.NewFieldValidationError(FieldLoopbackNumber, "loopback_number is required.")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxLoopbackNumber {
		return 0, util.NewFieldValidationError(FieldLoopbackNumber,
			"loopback_number must be an integer between 0 and 2147483647.")
	}
	return n, nil
}
