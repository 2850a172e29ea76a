// Package tpm models the PCR-sealing policy the engine applies to
// TPM2-backed encrypted volumes (§3.7/§4.8). Only the subset of PCRs
// {4, 7, 11} — boot-loader-code, secure-boot-policy, kernel-boot — is
// supported, matching the original implementation's sealing logic.
package tpm
