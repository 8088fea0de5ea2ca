// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package profile

import (
	"os"
	"strings"
)

type ProfileType string

var Current = DEV // dev profile as default

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

// Parse returns the profile named by value, ok is false for unknown names
func Parse(value string) (ProfileType, bool) {
	switch ProfileType(strings.ToUpper(strings.TrimSpace(value))) {
	case DEV:
		return DEV, true
	case TEST:
		return TEST, true
	case PROD:
		return PROD, true
	}
	return DEV, false
}

// InitProfile reads the PROFILE environment variable, unknown values keep the current profile
func InitProfile() ProfileType {
	if p, ok := Parse(os.Getenv("PROFILE")); ok {
		Current = p
	}
	return Current
}
