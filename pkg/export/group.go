package export

import (
	"sort"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/modality"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"gorm.io/datatypes"
)

// Group is the set of images reconstructed into one artifact.
type Group struct {
	Time   datatypes.Time
	Images []warehouse.Image
}

// Files returns the ordered source paths of the group, dropping images without a file.
func (g Group) Files() []string {
	images := append([]warehouse.Image(nil), g.Images...)
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i].InstanceNumber, images[j].InstanceNumber
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return images[i].ID < images[j].ID
	})

	files := make([]string, 0, len(images))
	for _, img := range images {
		if img.DicomFile != nil && *img.DicomFile != "" {
			files = append(files, *img.DicomFile)
		}
	}
	return files
}

// GroupImages splits a series into one group per acquisition time. A single time
// takes every image of the series; a series without times yields no group.
func GroupImages(images []warehouse.Image) []Group {
	times := collapseTimes(modality.DistinctTimes(images), images)
	if len(times) == 1 {
		return []Group{{Time: times[0], Images: images}}
	}

	groups := make([]Group, 0, len(times))
	for _, t := range times {
		g := Group{Time: t}
		for _, img := range images {
			if img.AcquisitionTime != nil && *img.AcquisitionTime == t {
				g.Images = append(g.Images, img)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// collapseTimes keeps only the earliest time when every consecutive gap is exactly one
// second and the images are not spread evenly over the times. Such series are a single
// volume whose slices were stamped while the clock ticked.
func collapseTimes(times []datatypes.Time, images []warehouse.Image) []datatypes.Time {
	if len(times) < 2 {
		return times
	}
	for i := 1; i < len(times); i++ {
		if time.Duration(times[i]-times[i-1]) != time.Second {
			return times
		}
	}

	counts := make(map[datatypes.Time]int, len(times))
	for _, img := range images {
		if img.AcquisitionTime != nil {
			counts[*img.AcquisitionTime]++
		}
	}
	first := counts[times[0]]
	for _, t := range times[1:] {
		if counts[t] != first {
			return times[:1]
		}
	}
	return times
}
