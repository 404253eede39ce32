package ldap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// Active Directory stores a handful of identifiers as raw bytes. They are
// rendered as text so that every attribute value can be handled as a string.
var binaryAttributeDecoders = map[string]func([]byte) (string, error){
	"objectsid":  DecodeSID,
	"objectguid": DecodeGUID,
}

// GUIDBytesLength is the size of a binary GUID.
const GUIDBytesLength = 16

// DecodeSID converts a binary security identifier to its S-1-5-21-... form.
func DecodeSID(raw []byte) (string, error) {
	// revision, sub-authority count and a 6 byte identifier authority,
	// followed by 4 bytes per sub-authority.
	if len(raw) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(raw))
	}
	if want := 8 + 4*int(raw[1]); len(raw) < want {
		return "", fmt.Errorf("binary SID truncated: %d bytes, want %d", len(raw), want)
	}

	return objectsid.Decode(raw).String(), nil
}

// DecodeGUID converts an Active Directory GUID to its hyphenated form.
// Active Directory uses mixed-endian encoding: the first three groups are
// little-endian, the last two big-endian.
func DecodeGUID(raw []byte) (string, error) {
	if len(raw) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID length: expected %d bytes, got %d", GUIDBytesLength, len(raw))
	}

	standard := make([]byte, GUIDBytesLength)
	standard[0], standard[1], standard[2], standard[3] = raw[3], raw[2], raw[1], raw[0]
	standard[4], standard[5] = raw[5], raw[4]
	standard[6], standard[7] = raw[7], raw[6]
	copy(standard[8:], raw[8:])

	id, err := uuid.FromBytes(standard)
	if err != nil {
		return "", fmt.Errorf("failed to convert GUID: %w", err)
	}

	return id.String(), nil
}

// attributeValues returns the textual values of attr, decoding known binary
// attributes. Values that fail to decode are returned as received.
func attributeValues(attr *ldap.EntryAttribute) []string {
	decode, ok := binaryAttributeDecoders[strings.ToLower(attr.Name)]
	if !ok || len(attr.ByteValues) == 0 {
		return slices.Clone(attr.Values)
	}

	values := make([]string, 0, len(attr.ByteValues))
	for _, raw := range attr.ByteValues {
		value, err := decode(raw)
		if err != nil {
			return slices.Clone(attr.Values)
		}
		values = append(values, value)
	}

	return values
}
