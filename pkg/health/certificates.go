package health

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

type CertificateState string

const (
	CertificateActive   CertificateState = "ACTIVE"
	CertificateInactive CertificateState = "INACTIVE"
)

// CertificateInfo describes one certificate found in the configured files.
type CertificateInfo struct {
	Alias        string           `json:"alias"`
	SubjectDN    string           `json:"subjectDN"`
	SerialNumber string           `json:"serialNumber"`
	ValidFrom    time.Time        `json:"validFrom"`
	ValidTo      time.Time        `json:"validTo"`
	State        CertificateState `json:"state"`
}

func (ci CertificateInfo) stateAt(now time.Time) CertificateState {
	if now.Before(ci.ValidFrom) || now.After(ci.ValidTo) {
		return CertificateInactive
	}
	return CertificateActive
}

// LoadCertificateInfos reads every CERTIFICATE block of the given PEM files,
// sorted by alias (the subject common name, or the full subject without one).
func LoadCertificateInfos(files []string) ([]CertificateInfo, error) {
	var infos []CertificateInfo
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read certificate file %s: %w", file, err)
		}
		for {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate in %s: %w", file, err)
			}
			alias := cert.Subject.CommonName
			if alias == "" {
				alias = cert.Subject.String()
			}
			infos = append(infos, CertificateInfo{
				Alias:        alias,
				SubjectDN:    cert.Subject.String(),
				SerialNumber: cert.SerialNumber.String(),
				ValidFrom:    cert.NotBefore,
				ValidTo:      cert.NotAfter,
			})
		}
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Alias < infos[j].Alias })
	return infos, nil
}

// CertificatesIndicator reports DOWN when no certificate is currently valid,
// UP when all are and UNKNOWN otherwise.
type CertificatesIndicator struct {
	infos []CertificateInfo
	now   func() time.Time
}

// NewCertificatesIndicator logs a warning for every certificate that expires
// within warningPeriod.
func NewCertificatesIndicator(log *zap.SugaredLogger, infos []CertificateInfo, warningPeriod time.Duration) *CertificatesIndicator {
	now := time.Now()
	for _, ci := range infos {
		if ci.stateAt(now) == CertificateActive && ci.ValidTo.Before(now.Add(warningPeriod)) {
			log.Warnw("Certificate is about to expire", "alias", ci.Alias, "serialNumber", ci.SerialNumber, "validTo", ci.ValidTo)
		}
	}
	return &CertificatesIndicator{infos: infos, now: time.Now}
}

func (ci *CertificatesIndicator) Health() Result {
	now := ci.now()
	infos := make([]CertificateInfo, len(ci.infos))
	active := 0
	for i, info := range ci.infos {
		info.State = info.stateAt(now)
		if info.State == CertificateActive {
			active++
		}
		infos[i] = info
	}

	status := StatusUnknown
	switch {
	case active == 0:
		status = StatusDown
	case active == len(infos):
		status = StatusUp
	}
	return Result{Status: status, Details: map[string]interface{}{"certificates": infos}}
}
