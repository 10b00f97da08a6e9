package screnc

// substitution maps an encoded byte to its three possible plaintext bytes.
// Rows are transcribed from the published Script Encoder key. Rows 10, 13, 60
// and 62 share the same triple, and rows 11-31 are identity rows that the
// decode guard never reaches; both are kept as-is.
var substitution = [128][3]byte{
	9:   {0x57, 0x6E, 0x7B},
	10:  {0x4A, 0x4C, 0x41},
	11:  {0x0B, 0x0B, 0x0B},
	12:  {0x0C, 0x0C, 0x0C},
	13:  {0x4A, 0x4C, 0x41},
	14:  {0x0E, 0x0E, 0x0E},
	15:  {0x0F, 0x0F, 0x0F},
	16:  {0x10, 0x10, 0x10},
	17:  {0x11, 0x11, 0x11},
	18:  {0x12, 0x12, 0x12},
	19:  {0x13, 0x13, 0x13},
	20:  {0x14, 0x14, 0x14},
	21:  {0x15, 0x15, 0x15},
	22:  {0x16, 0x16, 0x16},
	23:  {0x17, 0x17, 0x17},
	24:  {0x18, 0x18, 0x18},
	25:  {0x19, 0x19, 0x19},
	26:  {0x1A, 0x1A, 0x1A},
	27:  {0x1B, 0x1B, 0x1B},
	28:  {0x1C, 0x1C, 0x1C},
	29:  {0x1D, 0x1D, 0x1D},
	30:  {0x1E, 0x1E, 0x1E},
	31:  {0x1F, 0x1F, 0x1F},
	32:  {0x2E, 0x2D, 0x32},
	33:  {0x47, 0x75, 0x30}, // '!'
	34:  {0x7A, 0x52, 0x21}, // '"'
	35:  {0x56, 0x60, 0x29}, // '#'
	36:  {0x42, 0x71, 0x5B}, // '$'
	37:  {0x6A, 0x5E, 0x38}, // '%'
	38:  {0x2F, 0x49, 0x33}, // '&'
	39:  {0x26, 0x5C, 0x3D}, // "'"
	40:  {0x49, 0x62, 0x58}, // '('
	41:  {0x41, 0x7D, 0x3A}, // ')'
	42:  {0x34, 0x29, 0x35}, // '*'
	43:  {0x32, 0x36, 0x65}, // '+'
	44:  {0x5B, 0x20, 0x39}, // ','
	45:  {0x76, 0x7C, 0x5C}, // '-'
	46:  {0x72, 0x7A, 0x56}, // '.'
	47:  {0x43, 0x7F, 0x73}, // '/'
	48:  {0x38, 0x6B, 0x66}, // '0'
	49:  {0x39, 0x63, 0x4E}, // '1'
	50:  {0x70, 0x33, 0x45}, // '2'
	51:  {0x45, 0x2B, 0x6B}, // '3'
	52:  {0x68, 0x68, 0x62}, // '4'
	53:  {0x71, 0x51, 0x59}, // '5'
	54:  {0x4F, 0x66, 0x78}, // '6'
	55:  {0x09, 0x76, 0x5E}, // '7'
	56:  {0x62, 0x31, 0x7D}, // '8'
	57:  {0x44, 0x64, 0x4A}, // '9'
	58:  {0x23, 0x54, 0x6D}, // ':'
	59:  {0x75, 0x43, 0x71}, // ';'
	60:  {0x4A, 0x4C, 0x41}, // '<'
	61:  {0x7E, 0x3A, 0x60}, // '='
	62:  {0x4A, 0x4C, 0x41}, // '>'
	63:  {0x5E, 0x7E, 0x53}, // '?'
	64:  {0x40, 0x4C, 0x40}, // '@'
	65:  {0x77, 0x45, 0x42}, // 'A'
	66:  {0x4A, 0x2C, 0x27}, // 'B'
	67:  {0x61, 0x2A, 0x48}, // 'C'
	68:  {0x5D, 0x74, 0x72}, // 'D'
	69:  {0x22, 0x27, 0x75}, // 'E'
	70:  {0x4B, 0x37, 0x31}, // 'F'
	71:  {0x6F, 0x44, 0x37}, // 'G'
	72:  {0x4E, 0x79, 0x4D}, // 'H'
	73:  {0x3B, 0x59, 0x52}, // 'I'
	74:  {0x4C, 0x2F, 0x22}, // 'J'
	75:  {0x50, 0x6F, 0x54}, // 'K'
	76:  {0x67, 0x26, 0x6A}, // 'L'
	77:  {0x2A, 0x72, 0x47}, // 'M'
	78:  {0x7D, 0x6A, 0x64}, // 'N'
	79:  {0x74, 0x39, 0x2D}, // 'O'
	80:  {0x54, 0x7B, 0x20}, // 'P'
	81:  {0x2B, 0x3F, 0x7F}, // 'Q'
	82:  {0x2D, 0x38, 0x2E}, // 'R'
	83:  {0x2C, 0x77, 0x4C}, // 'S'
	84:  {0x30, 0x67, 0x5D}, // 'T'
	85:  {0x6E, 0x53, 0x7E}, // 'U'
	86:  {0x6B, 0x47, 0x6C}, // 'V'
	87:  {0x66, 0x34, 0x6F}, // 'W'
	88:  {0x35, 0x78, 0x79}, // 'X'
	89:  {0x25, 0x5D, 0x74}, // 'Y'
	90:  {0x21, 0x30, 0x43}, // 'Z'
	91:  {0x64, 0x23, 0x26}, // '['
	92:  {0x4D, 0x5A, 0x76}, // '\\'
	93:  {0x52, 0x5B, 0x25}, // ']'
	94:  {0x63, 0x6C, 0x24}, // '^'
	95:  {0x3F, 0x48, 0x2B}, // '_'
	96:  {0x7B, 0x55, 0x28}, // '`'
	97:  {0x78, 0x70, 0x23}, // 'a'
	98:  {0x29, 0x69, 0x41}, // 'b'
	99:  {0x28, 0x2E, 0x34}, // 'c'
	100: {0x73, 0x4C, 0x09}, // 'd'
	101: {0x59, 0x21, 0x2A}, // 'e'
	102: {0x33, 0x24, 0x44}, // 'f'
	103: {0x7F, 0x4E, 0x3F}, // 'g'
	104: {0x6D, 0x50, 0x77}, // 'h'
	105: {0x55, 0x09, 0x3B}, // 'i'
	106: {0x53, 0x56, 0x55}, // 'j'
	107: {0x7C, 0x73, 0x69}, // 'k'
	108: {0x3A, 0x35, 0x61}, // 'l'
	109: {0x5F, 0x61, 0x63}, // 'm'
	110: {0x65, 0x4B, 0x50}, // 'n'
	111: {0x46, 0x58, 0x67}, // 'o'
	112: {0x58, 0x3B, 0x51}, // 'p'
	113: {0x31, 0x57, 0x49}, // 'q'
	114: {0x69, 0x22, 0x4F}, // 'r'
	115: {0x6C, 0x6D, 0x46}, // 's'
	116: {0x5A, 0x4D, 0x68}, // 't'
	117: {0x48, 0x25, 0x7C}, // 'u'
	118: {0x27, 0x28, 0x36}, // 'v'
	119: {0x5C, 0x46, 0x70}, // 'w'
	120: {0x3D, 0x4A, 0x6E}, // 'x'
	121: {0x24, 0x32, 0x7A}, // 'y'
	122: {0x79, 0x41, 0x2F}, // 'z'
	123: {0x37, 0x3D, 0x5F}, // '{'
	124: {0x60, 0x5F, 0x4B}, // '|'
	125: {0x51, 0x4F, 0x5A}, // '}'
	126: {0x20, 0x42, 0x2C}, // '~'
	127: {0x36, 0x65, 0x57},}

// hasRow reports which rows of substitution are populated. Rows 0-8 are
// absent from the key.
var hasRow = func() (rows [128]bool) {
	for b := 9; b < len(rows); b++ {
		rows[b] = true
	}
	return rows
}()

// combination selects the substitution column for each position modulo 64.
var combination = [64]uint8{
	0, 1, 2, 0, 1, 2, 1, 2, 2, 1, 2, 1, 0, 2, 1, 2,
	0, 2, 1, 2, 0, 0, 1, 2, 2, 1, 0, 2, 1, 2, 2, 1,
	0, 0, 2, 1, 2, 1, 2, 0, 2, 0, 0, 1, 2, 0, 2, 1,
	0, 2, 1, 2, 0, 0, 1, 2, 2, 0, 0, 1, 2, 0, 2, 1,
}
