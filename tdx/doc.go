// Package tdx attests the enclave signing key.
//
// Participants only trust responses signed by a key whose attestation they
// have checked. ReportData binds that key into the 64 bytes of TDX report data;
// AttestKey and VerifyKey produce and check evidence over it with any Provider.
package tdx
