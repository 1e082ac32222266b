// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opts

import (
	"testing"
)

func validOpts(t *testing.T) *Opts {
	t.Helper()

	o, err := NewOpts(WithDefaults())
	if err != nil {
		t.Fatal(err)
	}

	return o
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Opts)
		want   error
	}{
		{
			name:   "defaults are valid",
			modify: func(*Opts) {},
			want:   nil,
		},
		{
			name:   "wrong version",
			modify: func(o *Opts) { o.Version = 1 },
			want:   ErrInvalidVersion,
		},
		{
			name:   "missing sysfs root",
			modify: func(o *Opts) { o.SysfsRoot = "" },
			want:   ErrMissingSysfsRoot,
		},
		{
			name:   "missing memory device",
			modify: func(o *Opts) { o.MemFile = "" },
			want:   ErrMissingMemFile,
		},
		{
			name:   "missing iomem listing",
			modify: func(o *Opts) { o.IOMemFile = "" },
			want:   ErrMissingIOMemFile,
		},
		{
			name:   "zero vendor",
			modify: func(o *Opts) { o.VendorID = 0 },
			want:   ErrMissingVendorID,
		},
		{
			name:   "zero device",
			modify: func(o *Opts) { o.DeviceID = 0 },
			want:   ErrMissingDeviceID,
		},
		{
			name:   "empty marker",
			modify: func(o *Opts) { o.IOMemMarker = "" },
			want:   ErrMissingIOMemMarker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOpts(t)
			tt.modify(o)

			if got := Validate(o); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationSet(t *testing.T) {
	var calls int

	set := ValidationSet{
		func(*Opts) error { calls++; return nil },
		func(*Opts) error { calls++; return ErrMissingMemFile },
		func(*Opts) error { calls++; return nil },
	}

	if err := set.Validate(&Opts{}); err != ErrMissingMemFile {
		t.Errorf("got %v, want %v", err, ErrMissingMemFile)
	}

	if calls != 2 {
		t.Errorf("validation did not stop at the first error, %d calls", calls)
	}
}
