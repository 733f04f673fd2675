/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pkcs7

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"reflect"
	"sort"
)

// AttributeList is the authenticatedAttributes / unauthenticatedAttributes
// SET OF Attribute carried by a SignerInfo. Encoding/asn1 already handles
// the DER SET tag; this type adds the lookup helpers every caller needs.
type AttributeList []attribute

// ErrNoAttribute is returned by GetOne and GetAll when the requested
// attribute type is not present at all.
type ErrNoAttribute struct {
	Oid asn1.ObjectIdentifier
}

func (e ErrNoAttribute) Error() string {
	return fmt.Sprintf("pkcs7: missing attribute %s", e.Oid)
}

// Exists reports whether at least one attribute of the given type is
// present.
func (l AttributeList) Exists(oid asn1.ObjectIdentifier) bool {
	for _, a := range l {
		if a.Type.Equal(oid) {
			return true
		}
	}
	return false
}

// Add appends a new attribute of the given type, DER-encoding value as
// its single SET member.
func (l *AttributeList) Add(oid asn1.ObjectIdentifier, value interface{}) error {
	der, err := asn1.Marshal(value)
	if err != nil {
		return err
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return err
	}
	setBytes, err := asn1.Marshal([]asn1.RawValue{raw})
	if err != nil {
		return err
	}
	var setRaw asn1.RawValue
	if _, err := asn1.Unmarshal(setBytes, &setRaw); err != nil {
		return err
	}
	*l = append(*l, attribute{Type: oid, Value: setRaw})
	return nil
}

// GetOne decodes the single attribute value of the given type into v. It
// is an error for zero or more than one matching attribute to be
// present; use GetAll for attributes that legitimately repeat.
func (l AttributeList) GetOne(oid asn1.ObjectIdentifier, v interface{}) error {
	var found *attribute
	for i := range l {
		if !l[i].Type.Equal(oid) {
			continue
		}
		if found != nil {
			return fmt.Errorf("pkcs7: multiple attributes of type %s present", oid)
		}
		found = &l[i]
	}
	if found == nil {
		return ErrNoAttribute{Oid: oid}
	}
	return decodeAttributeValue(found.Value, v)
}

// GetAll decodes every attribute value of the given type, in the order
// they appear, into the slice pointed to by v.
func (l AttributeList) GetAll(oid asn1.ObjectIdentifier, v interface{}) error {
	var matches []asn1.RawValue
	for _, a := range l {
		if a.Type.Equal(oid) {
			matches = append(matches, a.Value)
		}
	}
	if len(matches) == 0 {
		return ErrNoAttribute{Oid: oid}
	}
	combined, err := asn1.Marshal(matches)
	if err != nil {
		return err
	}
	var inner []asn1.RawValue
	if _, err := asn1.Unmarshal(combined, &inner); err != nil {
		return err
	}
	return decodeValueSlice(inner, v)
}

// Bytes returns the DER encoding of the list as a SET OF Attribute, the
// form hashed for the "authenticated attributes" digest. DER requires
// SET OF members to be sorted by their encoded bytes; plain asn1.Marshal
// preserves Go slice order, so the sort happens here explicitly.
func (l AttributeList) Bytes() ([]byte, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return marshalSortedSet(l)
}

func marshalSortedSet(l AttributeList) ([]byte, error) {
	encoded := make([][]byte, len(l))
	for i, a := range l {
		der, err := asn1.Marshal(a)
		if err != nil {
			return nil, err
		}
		encoded[i] = der
	}
	sort.Slice(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	})
	return wrapSet(encoded)
}

// marshalUnsortedSet marshals the list as a SET OF Attribute preserving
// Go slice order, used only by tests that need a round-trip without the
// DER-mandated reordering obscuring insertion order.
func marshalUnsortedSet(l AttributeList) ([]byte, error) {
	encoded := make([][]byte, len(l))
	for i, a := range l {
		der, err := asn1.Marshal(a)
		if err != nil {
			return nil, err
		}
		encoded[i] = der
	}
	return wrapSet(encoded)
}

func wrapSet(encoded [][]byte) ([]byte, error) {
	var body []byte
	for _, e := range encoded {
		body = append(body, e...)
	}
	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSet,
		IsCompound: true,
		Bytes:      body,
	})
}

func decodeAttributeValue(raw asn1.RawValue, v interface{}) error {
	var members []asn1.RawValue
	if _, err := asn1.Unmarshal(raw.FullBytes, &members); err != nil {
		return err
	}
	if len(members) != 1 {
		return fmt.Errorf("pkcs7: expected one SET member, got %d", len(members))
	}
	_, err := asn1.Unmarshal(members[0].FullBytes, v)
	return err
}

// decodeValueSlice decodes each attribute's single SET member into a
// freshly appended element of the slice v points to.
func decodeValueSlice(values []asn1.RawValue, v interface{}) error {
	ptr := reflect.ValueOf(v)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("pkcs7: GetAll requires a pointer to a slice, got %T", v)
	}
	slice := ptr.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(values))
	for _, raw := range values {
		var members []asn1.RawValue
		if _, err := asn1.Unmarshal(raw.FullBytes, &members); err != nil {
			return err
		}
		if len(members) != 1 {
			return fmt.Errorf("pkcs7: expected one SET member, got %d", len(members))
		}
		elem := reflect.New(elemType)
		if _, err := asn1.Unmarshal(members[0].FullBytes, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}
