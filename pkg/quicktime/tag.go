package quicktime

import "fmt"

// Tag is a four-character atom type stored big-endian.
type Tag uint32

// MakeTag builds a Tag from a four-byte string.
func MakeTag(s string) Tag {
	if len(s) != 4 {
		panic(fmt.Sprintf("quicktime: tag %q is not four bytes", s))
	}
	return Tag(uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3]))
}

func (t Tag) String() string {
	b := []byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("0x%08X", uint32(t))
		}
	}
	return string(b)
}

// Atom and codec tags understood by the default parse table.
var (
	TagMOOV = MakeTag("moov")
	TagTRAK = MakeTag("trak")
	TagMDAT = MakeTag("mdat")
	TagMVHD = MakeTag("mvhd")
	TagTKHD = MakeTag("tkhd")
	TagMDIA = MakeTag("mdia")
	TagMDHD = MakeTag("mdhd")
	TagHDLR = MakeTag("hdlr")
	TagMINF = MakeTag("minf")
	TagVMHD = MakeTag("vmhd")
	TagSMHD = MakeTag("smhd")
	TagGMHD = MakeTag("gmhd")
	TagGMIN = MakeTag("gmin")
	TagDINF = MakeTag("dinf")
	TagDREF = MakeTag("dref")
	TagSTBL = MakeTag("stbl")
	TagSTSD = MakeTag("stsd")
	TagSTTS = MakeTag("stts")
	TagSTSS = MakeTag("stss")
	TagSTSC = MakeTag("stsc")
	TagSTSZ = MakeTag("stsz")
	TagSTCO = MakeTag("stco")
	TagEDTS = MakeTag("edts")
	TagELST = MakeTag("elst")
	TagUDTA = MakeTag("udta")
	TagCMOV = MakeTag("cmov")
	TagDCOM = MakeTag("dcom")
	TagCMVD = MakeTag("cmvd")
	TagWAVE = MakeTag("wave")
	TagESDS = MakeTag("esds")
	TagSMI  = MakeTag("SMI ")
	TagCTYP = MakeTag("ctyp")
	TagNAVG = MakeTag("NAVG")
	TagSTPN = MakeTag("STpn")
	TagPINF = MakeTag("pInf")

	tagZlib = MakeTag("zlib")
	tagAlis = MakeTag("alis")
	tagVide = MakeTag("vide")
	tagSoun = MakeTag("soun")
	tagMusi = MakeTag("musi")
	tagQDM2 = MakeTag("QDM2")
	tagStna = MakeTag("stna")
	tagStpn = MakeTag("stpn")
)
