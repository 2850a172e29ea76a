package tpm

import "fmt"

// Pcr names one of the Platform Configuration Registers hostd may seal an
// encrypted volume's unlock policy against.
type Pcr int

const (
	PcrBootLoaderCode  Pcr = 4
	PcrSecureBootPolicy Pcr = 7
	PcrKernelBoot       Pcr = 11
)

// SupportedPcrs is the closed set of PCRs hostd's encryption logic may seal
// against; any other PCR number is rejected by ValidatePcrs.
var SupportedPcrs = map[Pcr]string{
	PcrBootLoaderCode:   "boot-loader-code",
	PcrSecureBootPolicy: "secure-boot-policy",
	PcrKernelBoot:       "kernel-boot",
}

// Name returns the systemd-cryptenroll PCR name, or "" if unsupported.
func (p Pcr) Name() string { return SupportedPcrs[p] }

// ValidatePcrs rejects any PCR number outside SupportedPcrs.
func ValidatePcrs(pcrs []int) error {
	for _, n := range pcrs {
		if _, ok := SupportedPcrs[Pcr(n)]; !ok {
			return fmt.Errorf("PCR %d is not in the supported sealing set {4, 7, 11}", n)
		}
	}
	return nil
}
