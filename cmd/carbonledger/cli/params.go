// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// requiredAnnotation marks flags declared with required:"true".
const requiredAnnotation = "carbonledger_required"

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, a pointer to a struct. It panics when params cannot be bound:
// that is a bug in the command definition, not bad user input.
//
//	var params signParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("sign", &params) },
//	    Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
//	        return runSign(params, ...)
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers one flag per tagged field of params:
//
//   - flag:"name" or flag:"name,n" names the flag and its shorthand.
//     Untagged fields are skipped.
//   - desc:"..." is the help text.
//   - default:"..." is parsed as the field's type.
//   - required:"true" makes dispatch fail when the flag is absent.
//
// Fields may be string, bool, int, uint64 or []string. Embedded structs
// are walked, so shared blocks such as [JSONOutput] compose.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

// flagSpec is the parsed tag set of one field.
type flagSpec struct {
	name         string
	shorthand    string
	description  string
	defaultValue string
	required     bool
}

func parseFlagSpec(field reflect.StructField) (flagSpec, bool, error) {
	tag, ok := field.Tag.Lookup("flag")
	if !ok || tag == "" {
		return flagSpec{}, false, nil
	}
	spec := flagSpec{
		description:  field.Tag.Get("desc"),
		defaultValue: field.Tag.Get("default"),
	}
	spec.name, spec.shorthand, _ = strings.Cut(tag, ",")
	if len(spec.shorthand) > 1 {
		return flagSpec{}, false, fmt.Errorf("shorthand %q for --%s is longer than one character", spec.shorthand, spec.name)
	}
	if required := field.Tag.Get("required"); required != "" {
		parsed, err := strconv.ParseBool(required)
		if err != nil {
			return flagSpec{}, false, fmt.Errorf("required tag on --%s: %w", spec.name, err)
		}
		spec.required = parsed
	}
	return spec, true, nil
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		spec, tagged, err := parseFlagSpec(field)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if !tagged {
			continue
		}
		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}
		if err := bindField(fieldValue.Addr().Interface(), flagSet, spec); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if spec.required {
			if err := flagSet.SetAnnotation(spec.name, requiredAnnotation, []string{"true"}); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
		}
	}
	return nil
}

func bindField(target any, flagSet *pflag.FlagSet, spec flagSpec) error {
	name, short, usage, raw := spec.name, spec.shorthand, spec.description, spec.defaultValue
	defaultError := func(err error) error {
		return fmt.Errorf("default %q for --%s: %w", raw, name, err)
	}

	switch target := target.(type) {
	case *string:
		flagSet.StringVarP(target, name, short, raw, usage)
	case *bool:
		parsed := false
		if raw != "" {
			var err error
			if parsed, err = strconv.ParseBool(raw); err != nil {
				return defaultError(err)
			}
		}
		flagSet.BoolVarP(target, name, short, parsed, usage)
	case *int:
		parsed := 0
		if raw != "" {
			var err error
			if parsed, err = strconv.Atoi(raw); err != nil {
				return defaultError(err)
			}
		}
		flagSet.IntVarP(target, name, short, parsed, usage)
	case *uint64:
		var parsed uint64
		if raw != "" {
			var err error
			if parsed, err = strconv.ParseUint(raw, 10, 64); err != nil {
				return defaultError(err)
			}
		}
		flagSet.Uint64VarP(target, name, short, parsed, usage)
	case *[]string:
		var parsed []string
		if raw != "" {
			parsed = strings.Split(raw, ",")
		}
		flagSet.StringSliceVarP(target, name, short, parsed, usage)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", target, name)
	}
	return nil
}

// missingRequired returns the required flags of flagSet that were not
// given on the command line, sorted by name.
func missingRequired(flagSet *pflag.FlagSet) []string {
	var missing []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		if len(f.Annotations[requiredAnnotation]) > 0 && !f.Changed {
			missing = append(missing, "--"+f.Name)
		}
	})
	return missing
}
