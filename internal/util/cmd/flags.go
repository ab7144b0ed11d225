// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package cmdutil

import (
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// MultiaddrFlag is a pflag.Value for a multiaddr.
type MultiaddrFlag struct {
	Value *multiaddr.Multiaddr
}

func (m MultiaddrFlag) Type() string { return "multiaddr" }

func (m MultiaddrFlag) String() string {
	if m.Value == nil || *m.Value == nil {
		return ""
	}
	return (*m.Value).String()
}

func (m MultiaddrFlag) Set(s string) error {
	a, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return err
	}
	*m.Value = a
	return nil
}

// MultiaddrSliceFlag is a pflag.Value for a list of multiaddrs.
type MultiaddrSliceFlag []multiaddr.Multiaddr

func (m *MultiaddrSliceFlag) Type() string { return "multiaddr" }

func (m *MultiaddrSliceFlag) String() string {
	s := make([]string, len(*m))
	for i, a := range *m {
		s[i] = a.String()
	}
	return strings.Join(s, ",")
}

func (m *MultiaddrSliceFlag) Set(s string) error {
	a, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return err
	}
	*m = append(*m, a)
	return nil
}
