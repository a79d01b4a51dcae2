package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex trf_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

// initializeSID initializes the shortid generator once
func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short ID with a prefix.
// Total length is capped at 12 characters, e.g., `DN-xYZ12A8Q`.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	shortId := strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))

	return shortId
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_TARIFF            = "trf"
	UUID_PREFIX_BILLABLE_EVENT    = "evt"
	UUID_PREFIX_DEBIT_NOTE        = "dbn"
	UUID_PREFIX_DEBIT_LINE        = "dbl"
	UUID_PREFIX_GENERATION_RULE   = "rule"
	UUID_PREFIX_RULE_ENTRY        = "rent"
	UUID_PREFIX_RULE_RESTRICTION  = "restr"
	UUID_PREFIX_ACCOUNT           = "acc"
	UUID_PREFIX_PRODUCT           = "prod"
	UUID_PREFIX_REFERENCE_CODE    = "ref"
	UUID_PREFIX_REGISTRATION      = "reg"
	UUID_PREFIX_DEGREE            = "deg"
	UUID_PREFIX_EXECUTION_PERIOD  = "period"
	UUID_PREFIX_FINANCIAL_ENTITY  = "fent"
)

const (
	SHORT_ID_PREFIX_DEBIT_NOTE = "DN-"
)
