package wire

// Verb tags the kind of message a packet payload carries (§6).
type Verb byte

const (
	VerbHello                         Verb = 0x01
	VerbError                         Verb = 0x02
	VerbOK                            Verb = 0x03
	VerbWhois                         Verb = 0x04
	VerbRendezvous                    Verb = 0x05
	VerbFrame                         Verb = 0x06
	VerbExtFrame                      Verb = 0x07
	VerbEcho                          Verb = 0x08
	VerbMulticastLike                 Verb = 0x09
	VerbNetworkMembershipCertificate  Verb = 0x0a
	VerbNetworkConfigRequest          Verb = 0x0b
	VerbNetworkConfigRefresh          Verb = 0x0c
	VerbMulticastGather               Verb = 0x0d
	VerbMulticastFrame                Verb = 0x0e
	VerbPushDirectPaths               Verb = 0x10
	VerbCircuitTest                   Verb = 0x11
	VerbCircuitTestReport             Verb = 0x12
	VerbRequestProofOfWork            Verb = 0x13
	// VerbNop is never sent on the wire; it is used internally as the
	// "no in-re verb" placeholder when accounting an unrecognized verb
	// (§4.C step 3).
	VerbNop Verb = 0x00
)

func (v Verb) String() string {
	switch v {
	case VerbHello:
		return "HELLO"
	case VerbError:
		return "ERROR"
	case VerbOK:
		return "OK"
	case VerbWhois:
		return "WHOIS"
	case VerbRendezvous:
		return "RENDEZVOUS"
	case VerbFrame:
		return "FRAME"
	case VerbExtFrame:
		return "EXT_FRAME"
	case VerbEcho:
		return "ECHO"
	case VerbMulticastLike:
		return "MULTICAST_LIKE"
	case VerbNetworkMembershipCertificate:
		return "NETWORK_MEMBERSHIP_CERTIFICATE"
	case VerbNetworkConfigRequest:
		return "NETWORK_CONFIG_REQUEST"
	case VerbNetworkConfigRefresh:
		return "NETWORK_CONFIG_REFRESH"
	case VerbMulticastGather:
		return "MULTICAST_GATHER"
	case VerbMulticastFrame:
		return "MULTICAST_FRAME"
	case VerbPushDirectPaths:
		return "PUSH_DIRECT_PATHS"
	case VerbCircuitTest:
		return "CIRCUIT_TEST"
	case VerbCircuitTestReport:
		return "CIRCUIT_TEST_REPORT"
	case VerbRequestProofOfWork:
		return "REQUEST_PROOF_OF_WORK"
	case VerbNop:
		return "NOP"
	default:
		return "UNKNOWN"
	}
}

// CipherSuite selects the wire-frame authentication/encryption mode (§3, §6).
type CipherSuite byte

const (
	CipherNonePoly1305     CipherSuite = 0
	CipherSalsa2012Poly1305 CipherSuite = 1
)

// ErrorCode is carried in the payload of a VerbError message (§6).
type ErrorCode byte

const (
	ErrorObjNotFound                ErrorCode = 0x01
	ErrorUnsupportedOperation       ErrorCode = 0x02
	ErrorIdentityCollision          ErrorCode = 0x03
	ErrorNeedMembershipCertificate  ErrorCode = 0x04
	ErrorNetworkAccessDenied        ErrorCode = 0x05
	ErrorUnwantedMulticast          ErrorCode = 0x06
	ErrorInvalidRequest             ErrorCode = 0x07
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorObjNotFound:
		return "OBJ_NOT_FOUND"
	case ErrorUnsupportedOperation:
		return "UNSUPPORTED_OPERATION"
	case ErrorIdentityCollision:
		return "IDENTITY_COLLISION"
	case ErrorNeedMembershipCertificate:
		return "NEED_MEMBERSHIP_CERTIFICATE"
	case ErrorNetworkAccessDenied:
		return "NETWORK_ACCESS_DENIED"
	case ErrorUnwantedMulticast:
		return "UNWANTED_MULTICAST"
	case ErrorInvalidRequest:
		return "INVALID_REQUEST"
	default:
		return "UNKNOWN"
	}
}
