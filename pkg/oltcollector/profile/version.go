package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBanner is returned when the firmware banner does not have the
// expected three-line shape. Callers match it with errors.Is.
var ErrMalformedBanner = errors.New("profile: malformed firmware banner")

// DeviceIdentity is the identity parsed from an OLT firmware banner.
type DeviceIdentity struct {
	Type     string `json:"type"`
	Model    string `json:"model"`
	Version  string `json:"version"`
	Build    string `json:"build"`
	Compiled string `json:"compiled"`
	Serial   string `json:"serial"`
}

// bannerTokens is the token count of the first banner line:
//
//	BDCOM(tm) P3310B Software, Version 10.1.0E Build 37234
//	type      model  -         -       version -     build
const bannerTokens = 7

// ParseBanner parses the sysDescr banner of an OLT:
//
//	BDCOM(tm) P3310B Software, Version 10.1.0E Build 37234
//	Compiled: 2017-7-6 11:34:13 by SYS
//	Serial num:8016523021
//
// Lines two and three are "label:value"; only the first colon separates.
func ParseBanner(banner string) (DeviceIdentity, error) {
	var id DeviceIdentity

	var lines []string
	for _, l := range strings.Split(banner, "\n") {
		if l = strings.TrimSpace(strings.TrimRight(l, "\r")); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) != 3 {
		return id, fmt.Errorf("%w: %d lines, want 3", ErrMalformedBanner, len(lines))
	}

	tokens := strings.Fields(lines[0])
	if len(tokens) != bannerTokens {
		return id, fmt.Errorf("%w: %d tokens on line 1, want %d", ErrMalformedBanner, len(tokens), bannerTokens)
	}

	_, compiled, ok := strings.Cut(lines[1], ":")
	if !ok {
		return id, fmt.Errorf("%w: line 2 has no label", ErrMalformedBanner)
	}
	_, serial, ok := strings.Cut(lines[2], ":")
	if !ok {
		return id, fmt.Errorf("%w: line 3 has no label", ErrMalformedBanner)
	}

	return DeviceIdentity{
		Type:     tokens[0],
		Model:    tokens[1],
		Version:  tokens[4],
		Build:    tokens[6],
		Compiled: strings.TrimSpace(compiled),
		Serial:   strings.TrimSpace(serial),
	}, nil
}
