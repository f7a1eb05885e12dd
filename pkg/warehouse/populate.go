package warehouse

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"sync"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/tags"
	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

var (
	schemaCache sync.Map
	namer       = schema.NamingStrategy{}
	varcharSize = regexp.MustCompile(`(?i)varchar\((\d+)\)`)
)

func schemaOf(model any) (*schema.Schema, error) {
	s, err := schema.Parse(model, &schemaCache, namer)
	if err != nil {
		return nil, errs.NewConfigurationError(fmt.Errorf("parse schema of %T: %w", model, err))
	}
	return s, nil
}

// NewEntity returns a fresh pointer to the model an importer entity name maps to.
func NewEntity(entity string) (any, bool) {
	switch entity {
	case tags.EntityPatient:
		return &Patient{}, true
	case tags.EntityStudy:
		return &Study{}, true
	case tags.EntitySeries:
		return &Series{}, true
	case tags.EntityImage:
		return &Image{}, true
	case tags.EntityMRIImage:
		return &MRIImage{}, true
	case tags.EntityMRIImagePhilips:
		return &MRIImagePhilips{}, true
	case tags.EntityMRIImageSiemens:
		return &MRIImageSiemens{}, true
	case tags.EntityMRIImageGE:
		return &MRIImageGE{}, true
	}
	return nil, false
}

// Populate copies column values onto dest, a pointer to a model.
func Populate(ctx context.Context, dest any, values map[string]any) error {
	s, err := schemaOf(dest)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(dest)
	for column, value := range values {
		field := s.LookUpField(column)
		if field == nil {
			return errs.NewConfigurationError(fmt.Errorf("%s has no column %q", s.Table, column))
		}
		if err := assign(field.ReflectValueOf(ctx, rv), value); err != nil {
			return errs.NewConfigurationError(fmt.Errorf("%s.%s: %w", s.Table, column, err))
		}
	}
	return nil
}

// ColumnValue reads a column from a model, dereferencing pointers. Nil pointers read as nil.
func ColumnValue(ctx context.Context, model any, column string) (any, bool) {
	if model == nil {
		return nil, false
	}
	rv := reflect.ValueOf(model)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false
	}
	s, err := schemaOf(model)
	if err != nil {
		return nil, false
	}
	field := s.LookUpField(column)
	if field == nil || field.DBName == "" {
		return nil, false
	}
	fv := field.ReflectValueOf(ctx, rv)
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil, true
		}
		fv = fv.Elem()
	}
	return fv.Interface(), true
}

// Columns lists the database columns of a model in declaration order.
func Columns(model any) ([]string, error) {
	s, err := schemaOf(model)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), s.DBNames...), nil
}

func TableName(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	if s, err := schemaOf(model); err == nil {
		return s.Table
	}
	return fmt.Sprintf("%T", model)
}

// ValidateMapping checks every mapped field against the declared schema.
func ValidateMapping(m tags.Mapping) error {
	for _, entity := range m.Entities() {
		model, ok := NewEntity(entity)
		if !ok {
			return errs.NewConfigurationError(fmt.Errorf("unknown entity %q in tag mapping", entity))
		}
		s, err := schemaOf(model)
		if err != nil {
			return err
		}
		for _, f := range m.Fields(entity) {
			field := s.LookUpField(f.Column())
			if field == nil || field.DBName == "" {
				return errs.NewConfigurationError(fmt.Errorf("%s.%s: table %s has no column %q", entity, f.Name, s.Table, f.Column()))
			}
			if !typeCompatible(f.Type, field.FieldType) {
				return errs.NewConfigurationError(fmt.Errorf("%s.%s: %s cannot hold %s values", entity, f.Name, field.FieldType, f.Type))
			}
			if size := declaredSize(field); f.Length > 0 && size > 0 && f.Length > size {
				return errs.NewConfigurationError(fmt.Errorf("%s.%s: length %d exceeds column size %d", entity, f.Name, f.Length, size))
			}
		}
	}
	return nil
}

func declaredSize(field *schema.Field) int {
	if field.Size > 0 {
		return field.Size
	}
	if m := varcharSize.FindStringSubmatch(field.TagSettings["TYPE"]); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func sampleOf(t tags.FieldType) reflect.Type {
	switch t {
	case tags.TypeString:
		return reflect.TypeOf("")
	case tags.TypeInteger:
		return reflect.TypeOf(int64(0))
	case tags.TypeFloat, tags.TypeDecimal:
		return reflect.TypeOf(float64(0))
	case tags.TypeDate:
		return reflect.TypeOf(datatypes.Date{})
	case tags.TypeTime:
		return reflect.TypeOf(datatypes.Time(0))
	}
	return nil
}

func typeCompatible(t tags.FieldType, target reflect.Type) bool {
	src := sampleOf(t)
	if src == nil {
		return false
	}
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	_, ok := coerceType(src, target)
	return ok
}

func assign(target reflect.Value, value any) error {
	if !target.CanSet() {
		return fmt.Errorf("field is not settable")
	}
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		if val.Type().AssignableTo(target.Type()) {
			target.Set(val)
			return nil
		}
		if val.IsNil() {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		val = val.Elem()
	}

	tt := target.Type()
	if tt.Kind() == reflect.Ptr {
		conv, err := coerce(val, tt.Elem())
		if err != nil {
			return err
		}
		p := reflect.New(tt.Elem())
		p.Elem().Set(conv)
		target.Set(p)
		return nil
	}

	conv, err := coerce(val, tt)
	if err != nil {
		return err
	}
	target.Set(conv)
	return nil
}

func coerce(val reflect.Value, t reflect.Type) (reflect.Value, error) {
	convert, ok := coerceType(val.Type(), t)
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot store %s in %s", val.Type(), t)
	}
	if convert {
		return val.Convert(t), nil
	}
	return val, nil
}

// coerceType reports whether src can be stored as t, and whether a conversion is needed.
func coerceType(src, t reflect.Type) (convert bool, ok bool) {
	if src.AssignableTo(t) {
		return false, true
	}
	if !src.ConvertibleTo(t) {
		return false, false
	}
	switch {
	case isNumeric(src.Kind()) && isNumeric(t.Kind()):
		// time-of-day values are int64 underneath; keep them apart from plain numbers
		if src != reflect.TypeOf(datatypes.Time(0)) && t != reflect.TypeOf(datatypes.Time(0)) {
			return true, true
		}
	case src.Kind() == reflect.String && t.Kind() == reflect.String:
		return true, true
	case src.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return true, true
	}
	return false, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
