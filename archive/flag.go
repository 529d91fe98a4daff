// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// policyNames maps flag spellings to policies, in display order.
var policyNames = []struct {
	name  string
	value Policy
}{
	{"adaptive", PolicyAdaptive},
	{"store", PolicyStore},
	{"huffman", PolicyHuffman},
	{"zlib", PolicyZlib},
}

// PolicyFlag is a pflag.Value implementation that stores a codec policy.
type PolicyFlag Policy

var _ pflag.Value = (*PolicyFlag)(nil)

func (pf *PolicyFlag) String() string { return Policy(*pf).String() }

// Set implements pflag.Value.
func (pf *PolicyFlag) Set(v string) error {
	for _, e := range policyNames {
		if e.name == v {
			*pf = PolicyFlag(e.value)
			return nil
		}
	}
	return errors.Errorf("unknown codec policy: %q", v)
}

// Type implements pflag.Value.
func (pf *PolicyFlag) Type() string { return "archive.Policy" }

// Value returns the policy held by this flag.
func (pf PolicyFlag) Value() Policy { return Policy(pf) }

// PolicyFlagValues returns the list of possible values for a PolicyFlag.
func PolicyFlagValues() string {
	opts := make([]string, len(policyNames))
	for i, e := range policyNames {
		opts[i] = e.name
	}
	return strings.Join(opts, ", ")
}
