package core

// Opcode identifiers for every instruction mnemonic. Values are stable
// within a process but not a wire format — a ProgramArtifact stores
// mnemonics resolved to these constants at load time, never the constants
// themselves across a binary upgrade.
const (
	OpSETI Opcode = iota + 1
	OpSETR
	OpSETV
	OpPUSH
	OpPOP
	OpDUP
	OpSWAP
	OpDROP
	OpROT
	OpPUSI
	OpPUSV
	OpPUSL
	OpPOPL
	OpSETLR

	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpAND
	OpOR
	OpXOR
	OpNOT
	OpSHL
	OpSHR
	OpROL
	OpROR
	OpPOPCNT
	OpBSF
	OpBSR

	OpVADD
	OpVSUB
	OpVDOT
	OpVCROSS
	OpVGET
	OpVSET
	OpVBUILD
	OpB2V
	OpV2B
	OpRTRX

	OpJMPI
	OpJMPR
	OpJMPS
	OpCALL
	OpRET
	OpIFM
	OpIFP
	OpIFF
	OpIFV
	OpNIFM
	OpNIFP
	OpNIFF
	OpNIFV
	OpSKLS
	OpSKLR

	OpPEEK
	OpPEKI
	OpPEKS
	OpPOKE
	OpPOKI
	OpPOKS
	OpPPK
	OpPPKI
	OpPPKS
	OpSEEK

	OpNOP
	OpSYNC
	OpTURN
	OpPOS
	OpDIFF
	OpNRG
	OpNTR
	OpGDV
	OpRAND
	OpSMR

	OpFORK
	OpFRKI
	OpFRKS

	OpSCAN
	OpSCNI
	OpSCNS
	OpSPNP
	OpSNTF
	OpSNTE

	OpADP
)
