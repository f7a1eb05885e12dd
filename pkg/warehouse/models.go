package warehouse

import (
	"time"

	"gorm.io/datatypes"
)

// Base carries the columns shared by every warehouse table.
type Base struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Created     time.Time `gorm:"column:created;autoCreateTime" json:"created"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
}

func (b Base) GetID() int64 { return b.ID }

type Patient struct {
	Base
	PatientName      string          `gorm:"column:patient_name;type:varchar(200);not null;uniqueIndex" json:"patient_name"`
	PatientID        *string         `gorm:"column:patient_id;type:varchar(100)" json:"patient_id,omitempty"`
	PatientBirthDate *datatypes.Date `gorm:"column:patient_birth_date" json:"patient_birth_date,omitempty"`
	PatientSex       *string         `gorm:"column:patient_sex;type:varchar(16)" json:"patient_sex,omitempty"`
	PatientAge       *string         `gorm:"column:patient_age;type:varchar(16)" json:"patient_age,omitempty"`

	Studies []Study `gorm:"foreignKey:PatientID" json:"studies,omitempty"`
}

func (Patient) TableName() string { return "patient" }

type Study struct {
	Base
	PatientID        int64           `gorm:"column:patient_id;not null;index" json:"patient_ref"`
	StudyInstanceUID string          `gorm:"column:study_instance_uid;type:varchar(128);not null;uniqueIndex" json:"study_instance_uid"`
	PatientName      *string         `gorm:"column:patient_name;type:varchar(200)" json:"patient_name,omitempty"`
	StudyDate        *datatypes.Date `gorm:"column:study_date" json:"study_date,omitempty"`
	StudyTime        *datatypes.Time `gorm:"column:study_time" json:"study_time,omitempty"`
	StudyDescription *string         `gorm:"column:study_description;type:varchar(200)" json:"study_description,omitempty"`
	AccessionNumber  *string         `gorm:"column:accession_number;type:varchar(64)" json:"accession_number,omitempty"`

	Series   []Series       `gorm:"foreignKey:StudyID" json:"series,omitempty"`
	Protocol *StudyProtocol `gorm:"foreignKey:StudyID" json:"protocol,omitempty"`
}

func (Study) TableName() string { return "study" }

type Series struct {
	Base
	StudyID               int64           `gorm:"column:study_id;not null;index" json:"study_id"`
	SeriesInstanceUID     string          `gorm:"column:series_instance_uid;type:varchar(128);not null;uniqueIndex" json:"series_instance_uid"`
	Manufacturer          *string         `gorm:"column:manufacturer;type:varchar(100)" json:"manufacturer,omitempty"`
	ManufacturerModelName *string         `gorm:"column:manufacturer_model_name;type:varchar(100)" json:"manufacturer_model_name,omitempty"`
	SeriesDescription     *string         `gorm:"column:series_description;type:varchar(200)" json:"series_description,omitempty"`
	SeriesNumber          *int64          `gorm:"column:series_number" json:"series_number,omitempty"`
	SeriesDate            *datatypes.Date `gorm:"column:series_date" json:"series_date,omitempty"`
	Modality              *string         `gorm:"column:modality;type:varchar(16)" json:"modality,omitempty"`
	PatientPosition       *string         `gorm:"column:patient_position;type:varchar(16)" json:"patient_position,omitempty"`
	SliceThickness        *string         `gorm:"column:slice_thickness;type:varchar(32)" json:"slice_thickness,omitempty"`
	BodyPartExamined      *string         `gorm:"column:body_part_examined;type:varchar(64)" json:"body_part_examined,omitempty"`

	Study        *Study                `gorm:"foreignKey:StudyID" json:"-"`
	Images       []Image               `gorm:"foreignKey:SeriesID" json:"images,omitempty"`
	ScanPaths    []ScanPath            `gorm:"foreignKey:SeriesID" json:"scan_paths,omitempty"`
	T1W          *T1WModality          `gorm:"foreignKey:SeriesID" json:"t1w,omitempty"`
	T2W          *T2WModality          `gorm:"foreignKey:SeriesID" json:"t2w,omitempty"`
	MDixon       *MDixonModality       `gorm:"foreignKey:SeriesID" json:"mdixon,omitempty"`
	DWI          *DWIModality          `gorm:"foreignKey:SeriesID" json:"dwi,omitempty"`
	MIP          *MIPModality          `gorm:"foreignKey:SeriesID" json:"mip,omitempty"`
	Undetermined *UndeterminedModality `gorm:"foreignKey:SeriesID" json:"undetermined,omitempty"`
}

func (Series) TableName() string { return "series" }

type Image struct {
	Base
	SeriesID        int64           `gorm:"column:series_id;not null;index" json:"series_id"`
	SOPInstanceUID  string          `gorm:"column:sop_instance_uid;type:varchar(128);not null;uniqueIndex" json:"sop_instance_uid"`
	DicomFile       *string         `gorm:"column:dicom_file;type:varchar(1024)" json:"dicom_file,omitempty"`
	AcquisitionTime *datatypes.Time `gorm:"column:acquisition_time" json:"acquisition_time,omitempty"`
	InstanceNumber  *int64          `gorm:"column:instance_number" json:"instance_number,omitempty"`

	MRIImage *MRIImage `gorm:"foreignKey:ImageID" json:"mri_image,omitempty"`
}

func (Image) TableName() string { return "image" }

type MRIImage struct {
	Base
	ImageID               int64    `gorm:"column:image_id;not null;index" json:"image_id"`
	SOPInstanceUID        string   `gorm:"column:sop_instance_uid;type:varchar(128);not null;uniqueIndex" json:"sop_instance_uid"`
	MagneticFieldStrength *string  `gorm:"column:magnetic_field_strength;type:varchar(32)" json:"magnetic_field_strength,omitempty"`
	EchoTime              *float64 `gorm:"column:echo_time" json:"echo_time,omitempty"`
	RepetitionTime        *float64 `gorm:"column:repetition_time" json:"repetition_time,omitempty"`
	FlipAngle             *float64 `gorm:"column:flip_angle" json:"flip_angle,omitempty"`
	ScanningSequence      *string  `gorm:"column:scanning_sequence;type:varchar(64)" json:"scanning_sequence,omitempty"`
	SequenceVariant       *string  `gorm:"column:sequence_variant;type:varchar(64)" json:"sequence_variant,omitempty"`
	ImageType             *string  `gorm:"column:image_type;type:varchar(200)" json:"image_type,omitempty"`
	DiffusionBValue       *float64 `gorm:"column:diffusion_b_value" json:"diffusion_b_value,omitempty"`

	Philips *MRIImagePhilips `gorm:"foreignKey:ImageID" json:"philips,omitempty"`
	Siemens *MRIImageSiemens `gorm:"foreignKey:ImageID" json:"siemens,omitempty"`
	GE      *MRIImageGE      `gorm:"foreignKey:ImageID" json:"ge,omitempty"`
}

func (MRIImage) TableName() string { return "mri_image" }

// Vendor rows reference mri_image.id through image_id.

type MRIImagePhilips struct {
	Base
	ImageID                        int64    `gorm:"column:image_id;not null;uniqueIndex" json:"image_id"`
	AcquisitionContrast            *string  `gorm:"column:acquisition_contrast;type:varchar(64)" json:"acquisition_contrast,omitempty"`
	PulseSequenceName              *string  `gorm:"column:pulse_sequence_name;type:varchar(64)" json:"pulse_sequence_name,omitempty"`
	ImageType                      *string  `gorm:"column:image_type;type:varchar(200)" json:"image_type,omitempty"`
	UnknownKeyForSinwasDistinction *float64 `gorm:"column:unknown_key_for_sinwas_distinction" json:"unknown_key_for_sinwas_distinction,omitempty"`
	WaterFatShift                  *float64 `gorm:"column:water_fat_shift" json:"water_fat_shift,omitempty"`
}

func (MRIImagePhilips) TableName() string { return "mri_image_philips" }

type MRIImageSiemens struct {
	Base
	ImageID      int64   `gorm:"column:image_id;not null;uniqueIndex" json:"image_id"`
	SequenceName *string `gorm:"column:sequence_name;type:varchar(64)" json:"sequence_name,omitempty"`
	ImageType    *string `gorm:"column:image_type;type:varchar(200)" json:"image_type,omitempty"`
}

func (MRIImageSiemens) TableName() string { return "mri_image_siemens" }

type MRIImageGE struct {
	Base
	ImageID       int64   `gorm:"column:image_id;not null;uniqueIndex" json:"image_id"`
	PulseSequence *int64  `gorm:"column:pulse_sequence" json:"pulse_sequence,omitempty"`
	ImageType     *string `gorm:"column:image_type;type:varchar(200)" json:"image_type,omitempty"`
}

func (MRIImageGE) TableName() string { return "mri_image_ge" }

// ModalityColumns is embedded by the six variant tables.
type ModalityColumns struct {
	SeriesID          int64           `gorm:"column:series_id;not null;uniqueIndex" json:"series_id"`
	AcquisitionTime   *datatypes.Time `gorm:"column:acquisition_time" json:"acquisition_time,omitempty"`
	SeriesDescription *string         `gorm:"column:series_description;type:varchar(100)" json:"series_description,omitempty"`
}

type T1WModality struct {
	Base
	ModalityColumns
	TimeSeries     *string `gorm:"column:time_series;type:varchar(50)" json:"time_series,omitempty"`
	FatSup         *string `gorm:"column:fat_sup;type:varchar(50)" json:"fat_sup,omitempty"`
	Subtraction    *bool   `gorm:"column:subtraction" json:"subtraction,omitempty"`
	ContrastSeries *string `gorm:"column:contrast_series;type:varchar(50)" json:"contrast_series,omitempty"`
}

func (T1WModality) TableName() string { return "t1w_modality" }

type T2WModality struct {
	Base
	ModalityColumns
}

func (T2WModality) TableName() string { return "t2w_modality" }

type MDixonModality struct {
	Base
	ModalityColumns
	DixonType *string `gorm:"column:dixon_type;type:varchar(50)" json:"dixon_type,omitempty"`
}

func (MDixonModality) TableName() string { return "mdixon_modality" }

type DWIModality struct {
	Base
	ModalityColumns
	DWIType *string `gorm:"column:dwi_type;type:varchar(50)" json:"dwi_type,omitempty"`
	BValue1 *int64  `gorm:"column:b_value_1" json:"b_value_1,omitempty"`
	BValue2 *int64  `gorm:"column:b_value_2" json:"b_value_2,omitempty"`
}

func (DWIModality) TableName() string { return "dwi_modality" }

type MIPModality struct {
	Base
	ModalityColumns
	MIPType *string `gorm:"column:mip_type;type:varchar(50)" json:"mip_type,omitempty"`
}

func (MIPModality) TableName() string { return "mip_modality" }

type UndeterminedModality struct {
	Base
	ModalityColumns
	Reason *string `gorm:"column:reason;type:varchar(100)" json:"reason,omitempty"`
}

func (UndeterminedModality) TableName() string { return "undetermined_modality" }

type StudyProtocol struct {
	Base
	StudyID  int64   `gorm:"column:study_id;not null;uniqueIndex" json:"study_id"`
	Protocol *string `gorm:"column:protocol;type:varchar(200)" json:"protocol,omitempty"`
}

func (StudyProtocol) TableName() string { return "study_protocol" }

type ScanPath struct {
	Base
	SeriesID        int64           `gorm:"column:series_id;not null;index" json:"series_id"`
	Path            string          `gorm:"column:scan_path;type:varchar(400);not null;uniqueIndex" json:"scan_path"`
	AcquisitionTime *datatypes.Time `gorm:"column:acquisition_time" json:"acquisition_time,omitempty"`
}

func (ScanPath) TableName() string { return "scan_path" }

// Models lists every table in creation order.
func Models() []any {
	return []any{
		&Patient{}, &Study{}, &Series{}, &Image{}, &MRIImage{},
		&MRIImagePhilips{}, &MRIImageSiemens{}, &MRIImageGE{},
		&T1WModality{}, &T2WModality{}, &MDixonModality{}, &DWIModality{}, &MIPModality{}, &UndeterminedModality{},
		&StudyProtocol{}, &ScanPath{},
	}
}

// ModalityModels are the six mutually exclusive variant tables.
func ModalityModels() []any {
	return []any{&T1WModality{}, &T2WModality{}, &MDixonModality{}, &DWIModality{}, &MIPModality{}, &UndeterminedModality{}}
}
