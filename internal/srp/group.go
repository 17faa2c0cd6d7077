package srp

import (
	"crypto/sha512"
	"hash"
	"math/big"
)

type group struct {
	N      *big.Int
	g      *big.Int
	k      *big.Int
	padLen int
	newH   func() hash.Hash
}

// RFC 5054 Appendix A, 2048-bit group.
const rfc5054N2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

var defaultGroup = newGroup(rfc5054N2048, 2, sha512.New)

func newGroup(hexN string, g int64, newH func() hash.Hash) *group {
	n, ok := new(big.Int).SetString(hexN, 16)
	if !ok {
		panic("srp: invalid group prime")
	}
	grp := &group{
		N:      n,
		g:      big.NewInt(g),
		padLen: len(n.Bytes()),
		newH:   newH,
	}
	// k = H(N | PAD(g))
	grp.k = grp.hashInt(grp.pad(grp.N), grp.pad(grp.g))
	return grp
}

// pad returns x as a big-endian slice left-padded to the length of N.
func (grp *group) pad(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) >= grp.padLen {
		return b
	}
	out := make([]byte, grp.padLen)
	copy(out[grp.padLen-len(b):], b)
	return out
}

func (grp *group) hash(parts ...[]byte) []byte {
	h := grp.newH()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func (grp *group) hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(grp.hash(parts...))
}

// isDegenerate reports whether x ≡ 0 (mod N).
func (grp *group) isDegenerate(x *big.Int) bool {
	return new(big.Int).Mod(x, grp.N).Sign() == 0
}
