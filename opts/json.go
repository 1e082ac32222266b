// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"

	"system-transparency.org/nvtrust/sterror"
)

// document is the JSON layout of a configuration file.
type document struct {
	Paths
	Device
}

// WithJSON loads Paths and Device from a JSON object. Every key has to be
// present and unknown keys are rejected.
func WithJSON(src io.Reader) Loader {
	return func(o *Opts) error {
		if src == nil {
			return sterror.E(ErrScope, ErrOpLoad, ErrNoSrcProvided)
		}

		data, err := io.ReadAll(src)
		if err != nil {
			return sterror.E(ErrScope, ErrOpLoad, err)
		}

		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return sterror.E(ErrScope, ErrOpDecode, err)
		}

		for _, tag := range append(jsonTags(Paths{}), jsonTags(Device{})...) {
			if _, ok := keys[tag]; !ok {
				return sterror.E(ErrScope, ErrOpDecode, ErrMissingJSONKey, fmt.Sprintf("%q", tag))
			}
		}

		var doc document

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&doc); err != nil {
			return sterror.E(ErrScope, ErrOpDecode, err)
		}

		o.Paths = doc.Paths
		o.Device = doc.Device

		return nil
	}
}

// WithFile loads a JSON configuration file, see WithJSON.
func WithFile(path string) Loader {
	return func(o *Opts) error {
		if path == "" {
			return sterror.E(ErrScope, ErrOpLoad, ErrNoSrcProvided)
		}

		f, err := os.Open(path)
		if err != nil {
			return sterror.E(ErrScope, ErrOpLoad, err)
		}
		defer f.Close()

		return WithJSON(f)(o)
	}
}

func jsonTags(s interface{}) []string {
	tags := make([]string, 0)

	typ := reflect.TypeOf(s)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return []string{}
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if tag := field.Tag.Get("json"); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}
