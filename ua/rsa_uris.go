// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

// Algorithm uris used in SignatureData and encrypted identity tokens.
const (
	RsaSha1Signature      = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	RsaSha256Signature    = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	RsaPssSha256Signature = "http://opcfoundation.org/UA/security/rsa-pss-sha2-256"
	RsaV15KeyWrap         = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	RsaOaepKeyWrap        = "http://www.w3.org/2001/04/xmlenc#rsa-oaep"
	RsaOaepSha256KeyWrap  = "http://opcfoundation.org/UA/security/rsa-oaep-sha2-256"
)
