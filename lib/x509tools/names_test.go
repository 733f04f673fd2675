package x509tools

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPkixName(t *testing.T) {
	n := pkix.Name{
		CommonName:   "foo/bar",
		Organization: []string{"ham ", "eggs"},
		Locality:     []string{"north+southville"},
		Country:      []string{"US"},
	}
	der, err := asn1.Marshal(n.ToRDNSequence())
	require.NoError(t, err)
	assert.Equal(t, `/C=US/L=north+southville/O=eggs+O=ham /CN=foo\/bar/`, FormatPkixName(der))
}

func TestFormatPkixNameInvalid(t *testing.T) {
	assert.Equal(t, InvalidName, FormatPkixName([]byte{0xff, 0xff}))
}

func TestBMPName(t *testing.T) {
	n := pkix.RDNSequence{
		pkix.RelativeDistinguishedNameSET{pkix.AttributeTypeAndValue{
			Type: asn1.ObjectIdentifier{2, 5, 4, 10},
			Value: asn1.RawValue{
				Tag:   asn1.TagBMPString,
				Bytes: []byte{0x27, 0x14},
			},
		}},
	}
	blob, err := asn1.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `/O=✔/`, FormatPkixName(blob))
}

func TestParseDN(t *testing.T) {
	n := pkix.Name{
		Country:            []string{"US"},
		Organization:       []string{"Example Corp"},
		OrganizationalUnit: []string{"Widgets"},
		CommonName:         "widget-signer",
		Province:           []string{"NC"},
		Locality:           []string{"Cary"},
	}
	der, err := asn1.Marshal(n.ToRDNSequence())
	require.NoError(t, err)
	attrs := ParseDN(der)
	assert.Equal(t, "US", attrs.Country)
	assert.Equal(t, "Example Corp", attrs.Organization)
	assert.Equal(t, "Widgets", attrs.OrganizationalUnit)
	assert.Equal(t, "widget-signer", attrs.CommonName)
	assert.Equal(t, "NC", attrs.State)
	assert.Equal(t, "Cary", attrs.Locality)
}

func TestParseDNMalformed(t *testing.T) {
	assert.Equal(t, DNAttributes{}, ParseDN([]byte{0xff, 0xff, 0xff}))
}

func TestParseDNEmailAndDC(t *testing.T) {
	seq := pkix.RDNSequence{
		pkix.RelativeDistinguishedNameSET{pkix.AttributeTypeAndValue{
			Type:  asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}, // dc
			Value: "example",
		}},
		pkix.RelativeDistinguishedNameSET{pkix.AttributeTypeAndValue{
			Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, // emailAddress
			Value: "signer@example.com",
		}},
	}
	der, err := asn1.Marshal(seq)
	require.NoError(t, err)
	attrs := ParseDN(der)
	assert.Equal(t, "signer@example.com", attrs.EmailAddress)
	assert.Empty(t, attrs.Country)
}
