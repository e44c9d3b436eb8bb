package saml

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

var (
	// ErrMalformedAssertion is an exported constant or variable used by the hooks library.
	ErrMalformedAssertion = errors.New("malformed saml assertion")
	// ErrSignatureInvalid is an exported constant or variable used by the hooks library.
	ErrSignatureInvalid = errors.New("saml signature invalid")
	// ErrMissingSubject is an exported constant or variable used by the hooks library.
	ErrMissingSubject = errors.New("saml assertion missing subject")
)

const (
	claimEmail = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimName  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
)

// Assertion is the identity extracted from a validated bearer assertion.
type Assertion struct {
	NameID     string
	Issuer     string
	Email      string
	Name       string
	Attributes map[string]string
}

// Verifier defines a public type used by hooks APIs.
//
// Verifier instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Verifier struct {
	store dsig.MemoryX509CertificateStore
}

// NewVerifier pins the issuer certificates. certificatePEM may hold several
// PEM blocks; assertions signed by any of them validate.
func NewVerifier(certificatePEM string) (*Verifier, error) {
	var roots []*x509.Certificate

	rest := []byte(certificatePEM)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pinned certificate: %w", err)
		}
		roots = append(roots, cert)
	}

	if len(roots) == 0 {
		return nil, errors.New("no pinned certificate configured")
	}

	return &Verifier{
		store: dsig.MemoryX509CertificateStore{Roots: roots},
	}, nil
}

// Verify decodes a base64 assertion, checks its enveloped signature against
// the pinned certificates, and extracts the subject.
func (v *Verifier) Verify(encoded string) (*Assertion, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrMalformedAssertion, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: xml parse: %v", ErrMalformedAssertion, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedAssertion)
	}

	validationCtx := dsig.NewDefaultValidationContext(&v.store)
	validated, err := validationCtx.Validate(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return extractAssertion(validated)
}

// extractAssertion reads identity fields from the signature-validated
// element only. Anything outside the validated subtree is untrusted.
func extractAssertion(el *etree.Element) (*Assertion, error) {
	assertion := &Assertion{
		Attributes: map[string]string{},
	}

	if issuer := el.FindElement("./Issuer"); issuer != nil {
		assertion.Issuer = strings.TrimSpace(issuer.Text())
	}

	nameID := el.FindElement("./Subject/NameID")
	if nameID == nil {
		nameID = el.FindElement(".//NameID")
	}
	if nameID == nil || strings.TrimSpace(nameID.Text()) == "" {
		return nil, ErrMissingSubject
	}
	assertion.NameID = strings.TrimSpace(nameID.Text())

	for _, attr := range el.FindElements(".//AttributeStatement/Attribute") {
		name := attr.SelectAttrValue("Name", "")
		if name == "" {
			continue
		}
		value := attr.FindElement("./AttributeValue")
		if value == nil {
			continue
		}
		text := strings.TrimSpace(value.Text())
		assertion.Attributes[name] = text

		switch {
		case name == claimEmail || strings.EqualFold(name, "email"):
			assertion.Email = text
		case name == claimName || strings.EqualFold(name, "name"):
			assertion.Name = text
		}
	}

	return assertion, nil
}
