// Package epc derives GS1 GIAI-96 identifiers for RFID tags from the
// inventory numbering scheme.
//
// An individual asset reference (IAR) is laid out as
//
//	<iar prefix><collection reference><item reference><serial>
//
// where the collection and item references are zero padded to widths derived
// from the configured prefix lengths and the serial always takes SerialDigits.
package epc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// SerialDigits is the fixed width of the serial part of an IAR.
const SerialDigits = 4

// maxTotalDigits bounds company prefix plus IAR digits.
const maxTotalDigits = 24

const (
	giai96Header = 0x34
	giai96URI    = "urn:epc:tag:giai-96:"
	epcHexLen    = 24
)

type partition struct {
	companyPrefixBits   uint
	companyPrefixDigits int
	assetReferenceBits  uint
}

// GIAI-96 partition table, indexed by partition value.
var partitions = []partition{
	{40, 12, 42},
	{37, 11, 45},
	{34, 10, 48},
	{30, 9, 52},
	{27, 8, 55},
	{24, 7, 58},
	{20, 6, 62},
}

// EncodingError reports why an identifier could not be derived.
type EncodingError struct {
	Field   string
	Message string
}

func (e *EncodingError) Error() string { return e.Message }

func encodingErr(field, format string, args ...any) error {
	return &EncodingError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CollectionReferenceDigits returns the fixed width of collection reference
// numbers for the given prefixes. A result of 0 means the prefixes leave no
// room for a collection reference.
func CollectionReferenceDigits(companyPrefix, iarPrefix string) int {
	avail := maxTotalDigits - len(companyPrefix) - len(iarPrefix) - SerialDigits
	if avail >= 8 {
		return 4
	}
	if avail < 2 {
		return 0
	}
	return avail / 2
}

// ItemReferenceDigits returns the width of item reference numbers.
func ItemReferenceDigits(companyPrefix, iarPrefix string) int {
	avail := maxTotalDigits - len(companyPrefix) - len(iarPrefix) - SerialDigits - CollectionReferenceDigits(companyPrefix, iarPrefix)
	if avail < 0 {
		return 0
	}
	return avail
}

// MaxSerial is the largest serial that fits SerialDigits.
func MaxSerial() int {
	n := 1
	for i := 0; i < SerialDigits; i++ {
		n *= 10
	}
	return n - 1
}

// IARParams are the inputs of EncodeIndividualAssetReference.
type IARParams struct {
	CompanyPrefix       string
	IARPrefix           string
	CollectionReference string
	ItemReference       string
	Serial              int
}

// ValidateCompanyPrefix checks a GS1 company prefix usable with GIAI-96.
func ValidateCompanyPrefix(companyPrefix string) error {
	if !isDigits(companyPrefix) {
		return encodingErr("rfid_tag_company_prefix", "Company prefix %q should only contain digits", companyPrefix)
	}
	if len(companyPrefix) < 6 || len(companyPrefix) > 12 {
		return encodingErr("rfid_tag_company_prefix", "Company prefix should have 6 to 12 digits, got %d", len(companyPrefix))
	}
	return nil
}

// ValidateIARPrefix checks an individual asset reference prefix.
func ValidateIARPrefix(iarPrefix string) error {
	if !isDigits(iarPrefix) {
		return encodingErr("rfid_tag_individual_asset_reference_prefix", "Individual asset reference prefix %q should only contain digits", iarPrefix)
	}
	if strings.HasPrefix(iarPrefix, "0") {
		return encodingErr("rfid_tag_individual_asset_reference_prefix", "Individual asset reference prefix should not start with 0")
	}
	return nil
}

// EncodeIndividualAssetReference builds the numeric IAR for an item.
func EncodeIndividualAssetReference(p IARParams) (string, error) {
	if err := ValidateCompanyPrefix(p.CompanyPrefix); err != nil {
		return "", err
	}
	if err := ValidateIARPrefix(p.IARPrefix); err != nil {
		return "", err
	}
	collDigits := CollectionReferenceDigits(p.CompanyPrefix, p.IARPrefix)
	itemDigits := ItemReferenceDigits(p.CompanyPrefix, p.IARPrefix)
	if collDigits == 0 || itemDigits == 0 {
		return "", encodingErr("rfid_tag_individual_asset_reference_prefix", "Company prefix and individual asset reference prefix are too long (%d digits combined)", len(p.CompanyPrefix)+len(p.IARPrefix))
	}
	if p.CollectionReference == "" {
		return "", encodingErr("collection_reference_number", "Collection reference number is required")
	}
	if !isDigits(p.CollectionReference) {
		return "", encodingErr("collection_reference_number", "Collection reference number %q should only contain digits", p.CollectionReference)
	}
	if len(p.CollectionReference) > collDigits {
		return "", encodingErr("collection_reference_number", "Collection reference number %q should have at most %d digits", p.CollectionReference, collDigits)
	}
	if p.ItemReference == "" {
		return "", encodingErr("item_reference_number", "Item reference number is required")
	}
	if !isDigits(p.ItemReference) {
		return "", encodingErr("item_reference_number", "Item reference number %q should only contain digits", p.ItemReference)
	}
	if len(p.ItemReference) > itemDigits {
		return "", encodingErr("item_reference_number", "Item reference number %q should have at most %d digits", p.ItemReference, itemDigits)
	}
	if p.Serial < 0 || p.Serial > MaxSerial() {
		return "", encodingErr("serial", "Serial %d should be between 0 and %d", p.Serial, MaxSerial())
	}

	var b strings.Builder
	b.WriteString(p.IARPrefix)
	b.WriteString(padLeft(p.CollectionReference, collDigits))
	b.WriteString(padLeft(p.ItemReference, itemDigits))
	b.WriteString(padLeft(strconv.Itoa(p.Serial), SerialDigits))
	return b.String(), nil
}

// EncodeGIAI returns the GIAI-96 EPC tag URI for an IAR.
func EncodeGIAI(companyPrefix, individualAssetReference string) (string, error) {
	if err := ValidateCompanyPrefix(companyPrefix); err != nil {
		return "", err
	}
	if err := validateAssetReference(individualAssetReference); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s0.%s.%s", giai96URI, companyPrefix, individualAssetReference), nil
}

// EncodeEPCHex encodes a GIAI-96 tag URI into EPC memory bank hex.
func EncodeEPCHex(tagURI string) (string, error) {
	filter, companyPrefix, assetRef, err := parseGIAI(tagURI)
	if err != nil {
		return "", err
	}
	pIdx := 12 - len(companyPrefix)
	part := partitions[pIdx]

	cp, _ := new(big.Int).SetString(companyPrefix, 10)
	iar, ok := new(big.Int).SetString(assetRef, 10)
	if !ok {
		return "", encodingErr("epc_tag_uri", "Invalid asset reference %q", assetRef)
	}
	if iar.BitLen() > int(part.assetReferenceBits) {
		return "", encodingErr("epc_tag_uri", "Asset reference %s does not fit GIAI-96 with a %d digit company prefix", assetRef, len(companyPrefix))
	}

	v := big.NewInt(giai96Header)
	v.Lsh(v, 3).Or(v, big.NewInt(int64(filter)))
	v.Lsh(v, 3).Or(v, big.NewInt(int64(pIdx)))
	v.Lsh(v, part.companyPrefixBits).Or(v, cp)
	v.Lsh(v, part.assetReferenceBits).Or(v, iar)

	return padLeft(strings.ToUpper(v.Text(16)), epcHexLen), nil
}

// DecodeEPCHex decodes EPC memory bank hex holding a GIAI-96 into its tag URI.
func DecodeEPCHex(hex string) (string, error) {
	if len(hex) != epcHexLen {
		return "", encodingErr("rfid_tag_epc_memory_bank_contents", "EPC hex should have %d characters, got %d", epcHexLen, len(hex))
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return "", encodingErr("rfid_tag_epc_memory_bank_contents", "Invalid EPC hex %q", hex)
	}
	header := new(big.Int).Rsh(v, 88).Int64()
	if header != giai96Header {
		return "", encodingErr("rfid_tag_epc_memory_bank_contents", "EPC header %#x is not GIAI-96", header)
	}
	filter := new(big.Int).Rsh(v, 85).Int64() & 0x7
	pIdx := int(new(big.Int).Rsh(v, 82).Int64() & 0x7)
	if pIdx >= len(partitions) {
		return "", encodingErr("rfid_tag_epc_memory_bank_contents", "Invalid GIAI-96 partition %d", pIdx)
	}
	part := partitions[pIdx]
	cp := new(big.Int).Rsh(v, part.assetReferenceBits)
	cp.And(cp, mask(part.companyPrefixBits))
	iar := new(big.Int).And(v, mask(part.assetReferenceBits))

	cpStr := cp.String()
	if len(cpStr) > part.companyPrefixDigits {
		return "", encodingErr("rfid_tag_epc_memory_bank_contents", "Company prefix %s exceeds %d digits", cpStr, part.companyPrefixDigits)
	}
	return fmt.Sprintf("%s%d.%s.%s", giai96URI, filter, padLeft(cpStr, part.companyPrefixDigits), iar.String()), nil
}

func parseGIAI(tagURI string) (filter int, companyPrefix, assetRef string, err error) {
	if !strings.HasPrefix(tagURI, giai96URI) {
		return 0, "", "", encodingErr("epc_tag_uri", "EPC tag URI %q is not a GIAI-96 tag URI", tagURI)
	}
	parts := strings.Split(strings.TrimPrefix(tagURI, giai96URI), ".")
	if len(parts) != 3 {
		return 0, "", "", encodingErr("epc_tag_uri", "EPC tag URI %q should have filter, company prefix and asset reference", tagURI)
	}
	if len(parts[0]) != 1 || parts[0][0] < '0' || parts[0][0] > '7' {
		return 0, "", "", encodingErr("epc_tag_uri", "Invalid filter value %q", parts[0])
	}
	if err := ValidateCompanyPrefix(parts[1]); err != nil {
		return 0, "", "", err
	}
	if err := validateAssetReference(parts[2]); err != nil {
		return 0, "", "", err
	}
	return int(parts[0][0] - '0'), parts[1], parts[2], nil
}

func validateAssetReference(iar string) error {
	if !isDigits(iar) {
		return encodingErr("_individual_asset_reference", "Individual asset reference %q should only contain digits", iar)
	}
	if len(iar) > 1 && iar[0] == '0' {
		return encodingErr("_individual_asset_reference", "Individual asset reference %q should not start with 0", iar)
	}
	return nil
}

func mask(bits uint) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), bits)
	return m.Sub(m, big.NewInt(1))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
