package sms

// GSM 03.38 default alphabet. Characters in the basic set cost one septet;
// characters in the extension set cost two (escape + char). Anything else
// forces the whole message into UCS-2.

const gsm7BasicSet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

const gsm7ExtensionSet = "^{}\\[~]|€"

var (
	gsm7Basic     = make(map[rune]struct{}, len(gsm7BasicSet))
	gsm7Extension = make(map[rune]struct{}, len(gsm7ExtensionSet))
)

func init() {
	for _, r := range gsm7BasicSet {
		gsm7Basic[r] = struct{}{}
	}
	for _, r := range gsm7ExtensionSet {
		gsm7Extension[r] = struct{}{}
	}
}

// septetCost returns the septet count for one character, or ok=false when
// the character is not encodable in the default alphabet.
func septetCost(r rune) (cost int, ok bool) {
	if _, ok := gsm7Basic[r]; ok {
		return 1, true
	}
	if _, ok := gsm7Extension[r]; ok {
		return 2, true
	}
	return 0, false
}

// fitsGSM7 reports whether the whole body is encodable with the default
// alphabet.
func fitsGSM7(body string) bool {
	for _, r := range body {
		if _, ok := septetCost(r); !ok {
			return false
		}
	}
	return true
}
