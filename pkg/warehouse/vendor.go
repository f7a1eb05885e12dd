package warehouse

import (
	"strings"

	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
)

type Vendor string

const (
	VendorPhilips Vendor = "philips"
	VendorSiemens Vendor = "siemens"
	VendorGE      Vendor = "ge"
)

// Vendors is the dispatch order. The first substring match wins.
var Vendors = []Vendor{VendorPhilips, VendorSiemens, VendorGE}

// DetectVendor matches the lowercased manufacturer against the dispatch table.
func DetectVendor(manufacturer *string) (Vendor, bool) {
	if manufacturer == nil {
		return "", false
	}
	m := strings.ToLower(*manufacturer)
	for _, v := range Vendors {
		if strings.Contains(m, string(v)) {
			return v, true
		}
	}
	return "", false
}

// Entity is the tag-mapping entity holding this vendor's extension fields.
func (v Vendor) Entity() string {
	switch v {
	case VendorPhilips:
		return tags.EntityMRIImagePhilips
	case VendorSiemens:
		return tags.EntityMRIImageSiemens
	case VendorGE:
		return tags.EntityMRIImageGE
	}
	return ""
}

// Row returns the vendor extension row attached to img, or nil.
func (v Vendor) Row(img *MRIImage) any {
	if img == nil {
		return nil
	}
	switch v {
	case VendorPhilips:
		if img.Philips != nil {
			return img.Philips
		}
	case VendorSiemens:
		if img.Siemens != nil {
			return img.Siemens
		}
	case VendorGE:
		if img.GE != nil {
			return img.GE
		}
	}
	return nil
}
