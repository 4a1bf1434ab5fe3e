package rtcp

import "errors"

var (
	errInvalidHeader     = errors.New("rtcp: invalid header")
	errInvalidTotalLost  = errors.New("rtcp: invalid total lost count")
	errPacketTooShort    = errors.New("rtcp: packet too short")
	errWrongType         = errors.New("rtcp: wrong packet type")
	errBadVersion        = errors.New("rtcp: invalid packet version")
	errTooManyReports    = errors.New("rtcp: too many report blocks")
	errTooManyChunks     = errors.New("rtcp: too many sdes chunks")
	errSDESTextTooLong   = errors.New("rtcp: sdes item must be < 255 octets long")
	errSDESMissingType   = errors.New("rtcp: sdes item missing type")
	errReasonTooLong     = errors.New("rtcp: bye reason must be < 255 octets long")
	errREMBMalformed     = errors.New("rtcp: malformed remb packet")
	errPacketLengthMismatch = errors.New("rtcp: header length does not match body size")
)
