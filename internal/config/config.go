// Package config resolves the drill options.
//
// Sources, lowest precedence first: hardcoded flag defaults, the [drill]
// table of hashcards.toml in the collection directory, HASHCARDS_DRILL_*
// environment variables, and flags set on the command line.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	apperrors "github.com/conorfennell/hashcards/internal/errors"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

// Filename is the optional configuration file in the collection directory.
const Filename = "hashcards.toml"

// EnvPrefix starts every environment override, as in HASHCARDS_DRILL_PORT.
const EnvPrefix = "HASHCARDS_"

const section = "drill"

// Drill holds the resolved options of the drill command. A zero limit means
// no limit.
type Drill struct {
	CardLimit      int    `koanf:"card-limit" validate:"gte=0"`
	NewCardLimit   int    `koanf:"new-card-limit" validate:"gte=0"`
	Host           string `koanf:"host" validate:"required"`
	Port           int    `koanf:"port" validate:"gte=0,lte=65535"`
	FromDeck       string `koanf:"from-deck"`
	OpenBrowser    bool   `koanf:"open-browser"`
	BurySiblings   bool   `koanf:"bury-siblings"`
	AnswerControls string `koanf:"answer-controls" validate:"oneof=full binary"`
}

// Defaults are used when no other source sets an option.
func Defaults() Drill {
	return Drill{
		Host:           "127.0.0.1",
		Port:           8000,
		OpenBrowser:    true,
		BurySiblings:   true,
		AnswerControls: "full",
	}
}

// Controls parses the answer controls option.
func (d Drill) Controls() scheduler.AnswerControls {
	c, _ := scheduler.ParseAnswerControls(d.AnswerControls)
	return c
}

// Addr joins host and port.
func (d Drill) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// RegisterDrillFlags adds the drill flags to flags with their defaults.
func RegisterDrillFlags(flags *pflag.FlagSet) {
	def := Defaults()
	flags.Int("card-limit", def.CardLimit, "maximum number of cards to answer (0 for no limit)")
	flags.Int("new-card-limit", def.NewCardLimit, "maximum number of new cards to queue (0 for no limit)")
	flags.String("host", def.Host, "address to listen on")
	flags.Int("port", def.Port, "port to listen on (0 picks a free port)")
	flags.String("from-deck", def.FromDeck, "only drill cards from this deck and its subdecks")
	flags.Var(newBoolFlag(def.OpenBrowser), "open-browser", "open a browser tab once the server listens (`bool`)")
	flags.Var(newBoolFlag(def.BurySiblings), "bury-siblings", "hide the other cards of a note once one is answered (`bool`)")
	flags.String("answer-controls", def.AnswerControls, "grades offered to the learner: full or binary")
}

// Load resolves the drill options for the collection in dir. flags must have
// been set up with RegisterDrillFlags and parsed.
func Load(dir string, flags *pflag.FlagSet) (Drill, error) {
	k := koanf.New(".")

	path := filepath.Join(dir, Filename)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), TOML{}); err != nil {
			return Drill{}, apperrors.Wrap(apperrors.CodeConfigParse, "failed to parse "+path, err)
		}
		warnUnknownKeys(k, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Drill{}, apperrors.Wrap(apperrors.CodeConfigParse, "failed to read "+path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Drill{}, apperrors.Wrap(apperrors.CodeConfigParse, "failed to read environment", err)
	}

	// Unchanged flags only fill keys that no other source set.
	cli := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		if !slices.Contains(knownKeys(), f.Name) {
			return "", nil
		}
		return section + "." + f.Name, posflag.FlagVal(flags, f)
	})
	if err := k.Load(cli, nil); err != nil {
		return Drill{}, apperrors.Wrap(apperrors.CodeConfigParse, "failed to read flags", err)
	}

	var d Drill
	if err := k.Unmarshal(section, &d); err != nil {
		return Drill{}, apperrors.Wrap(apperrors.CodeConfigParse, "invalid value in "+path, err)
	}
	if err := Validate(d); err != nil {
		return Drill{}, err
	}

	slog.Debug("drill options resolved",
		"card_limit", d.CardLimit,
		"new_card_limit", d.NewCardLimit,
		"addr", d.Addr(),
		"from_deck", d.FromDeck,
		"open_browser", d.OpenBrowser,
		"bury_siblings", d.BurySiblings,
		"answer_controls", d.AnswerControls,
	)
	return d, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	return v
}

// Validate checks option bounds.
func Validate(d Drill) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Wrap(apperrors.CodeConfigInvalid, "invalid drill options", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return apperrors.New(apperrors.CodeConfigInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " must not be empty"
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// knownKeys lists the option names in the order of the Drill fields.
func knownKeys() []string {
	t := reflect.TypeFor[Drill]()
	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		keys = append(keys, t.Field(i).Tag.Get("koanf"))
	}
	return keys
}

func warnUnknownKeys(k *koanf.Koanf, path string) {
	known := knownKeys()
	for _, key := range k.Keys() {
		name, ok := strings.CutPrefix(key, section+".")
		if !ok || !slices.Contains(known, name) {
			slog.Warn("ignoring unknown option", "file", path, "key", key)
		}
	}
}

// envKey maps HASHCARDS_DRILL_CARD_LIMIT to drill.card-limit.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	table, name, ok := strings.Cut(s, "_")
	if !ok || table != section {
		return ""
	}
	return table + "." + strings.ReplaceAll(name, "_", "-")
}

// boolFlag is a boolean flag that takes its value as a separate argument,
// so that both --open-browser false and --open-browser=false work.
type boolFlag struct {
	v *bool
}

func newBoolFlag(def bool) boolFlag {
	return boolFlag{v: &def}
}

func (b boolFlag) String() string {
	if b.v == nil {
		return "false"
	}
	return strconv.FormatBool(*b.v)
}

func (b boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.v = v
	return nil
}

// Type reports "bool" so that pflag and posflag read the value as a bool.
func (b boolFlag) Type() string {
	return "bool"
}
