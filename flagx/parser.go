// Package flagx binds cobra flags to request structs, the CLI counterpart of gin binding
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

// BindFlags registers one flag per tagged field of target
//
//	type CheckRequest struct {
//	    Identity string        `flag:"identity,i" usage:"client identity" required:"true"`
//	    Rate     int64         `flag:"rate" usage:"requests per interval" default:"60"`
//	    Timeout  time.Duration `flag:"timeout" default:"5s"`
//	}
//
// Supported: string, int, int64, bool, float64, time.Duration, []string.
func BindFlags(cmd *cobra.Command, target interface{}) error {
	t, err := structType(target)
	if err != nil {
		return err
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, short, ok := flagName(field)
		if !ok {
			continue
		}

		usage := field.Tag.Get("usage")
		def := field.Tag.Get("default")
		if err := registerFlag(cmd, field.Type, name, short, usage, def); err != nil {
			return fmt.Errorf("bind field %s: %w", field.Name, err)
		}
		if field.Tag.Get("required") == "true" {
			if err := cmd.MarkFlagRequired(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseFlags copies flag values into target. When target has a
// Validate() error method it runs last.
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	if _, err := structType(target); err != nil {
		return err
	}

	v := reflect.ValueOf(target).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		name, _, ok := flagName(t.Field(i))
		if !ok || !field.CanSet() {
			continue
		}
		if err := setFieldValue(cmd, field, name); err != nil {
			return fmt.Errorf("parse field %s: %w", t.Field(i).Name, err)
		}
	}

	if validatable, ok := target.(interface{ Validate() error }); ok {
		return validatable.Validate()
	}
	return nil
}

func structType(target interface{}) (reflect.Type, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a pointer to struct")
	}
	return v.Elem().Type(), nil
}

// flagName "name,n" -> ("name", "n")
func flagName(field reflect.StructField) (string, string, bool) {
	tag := field.Tag.Get("flag")
	if tag == "" {
		return "", "", false
	}
	name, short, _ := strings.Cut(tag, ",")
	return name, short, true
}

func registerFlag(cmd *cobra.Command, typ reflect.Type, name, short, usage, def string) error {
	flags := cmd.Flags()
	if typ == durationType {
		d := time.Duration(0)
		if def != "" {
			parsed, err := time.ParseDuration(def)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			d = parsed
		}
		flags.DurationP(name, short, d, usage)
		return nil
	}

	switch typ.Kind() {
	case reflect.String:
		flags.StringP(name, short, def, usage)
	case reflect.Int:
		n, err := atoiDefault(def)
		if err != nil {
			return err
		}
		flags.IntP(name, short, int(n), usage)
	case reflect.Int64:
		n, err := atoiDefault(def)
		if err != nil {
			return err
		}
		flags.Int64P(name, short, n, usage)
	case reflect.Bool:
		b := false
		if def != "" {
			parsed, err := strconv.ParseBool(def)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			b = parsed
		}
		flags.BoolP(name, short, b, usage)
	case reflect.Float64:
		f := 0.0
		if def != "" {
			parsed, err := strconv.ParseFloat(def, 64)
			if err != nil {
				return fmt.Errorf("default %q: %w", def, err)
			}
			f = parsed
		}
		flags.Float64P(name, short, f, usage)
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", typ.Elem().Kind())
		}
		var vals []string
		if def != "" {
			vals = strings.Split(def, ",")
		}
		flags.StringSliceP(name, short, vals, usage)
	default:
		return fmt.Errorf("unsupported field type: %s", typ.Kind())
	}
	return nil
}

func atoiDefault(def string) (int64, error) {
	if def == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(def, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("default %q: %w", def, err)
	}
	return n, nil
}

func setFieldValue(cmd *cobra.Command, field reflect.Value, name string) error {
	flags := cmd.Flags()
	if field.Type() == durationType {
		d, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, err := flags.GetString(name)
		if err != nil {
			return err
		}
		field.SetString(s)
	case reflect.Int:
		n, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Int64:
		n, err := flags.GetInt64(name)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Float64:
		f, err := flags.GetFloat64(name)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		vals, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(vals))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
