package srtp

import "errors"

var (
	errKeyLengthMismatch = errors.New("srtp: master key/salt length does not match policy")
	errPacketTooShort    = errors.New("srtp: packet shorter than its authentication tag")
	errAuthFailed        = errors.New("srtp: authentication tag mismatch")
	errReplay            = errors.New("srtp: replayed or too-old packet index")
)
