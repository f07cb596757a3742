package models

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
)

type X509Certificate x509.Certificate

func (c *X509Certificate) String() string {
	res, err := c.MarshalJSON()
	if err != nil {
		return ""
	}

	return strings.ReplaceAll(string(res), "\"", "")
}

func (c *X509Certificate) PEM() string {
	if c == nil {
		return ""
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}))
}

func (c *X509Certificate) MarshalJSON() ([]byte, error) {
	data := []byte{}

	if c != nil {
		pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
		data = make([]byte, base64.StdEncoding.EncodedLen(len(pemCert)))
		base64.StdEncoding.Encode(data, pemCert)
		return json.Marshal(string(data))
	}

	return json.Marshal(data)
}

func (c *X509Certificate) UnmarshalJSON(data []byte) error {
	var decodedCert []byte
	err := json.Unmarshal(data, &decodedCert)
	if err != nil {
		return err
	}

	certBlock, _ := pem.Decode(decodedCert)
	if certBlock != nil {
		certificate, err := x509.ParseCertificate(certBlock.Bytes)
		if err != nil {
			return err
		}

		*c = X509Certificate(*certificate)
		return nil
	}

	return fmt.Errorf("missing cert block")
}
