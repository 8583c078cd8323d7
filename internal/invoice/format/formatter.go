package format

import (
	"fmt"

	appointmentdomain "github.com/medisync/clinicbilling/internal/appointment/domain"
	"github.com/shopspring/decimal"
)

// Default settlement units: virtual consultations settle in the foreign
// unit, in-person ones in the local unit. Overridable via config.
const (
	DefaultVirtualCurrency  = "USD"
	DefaultInPersonCurrency = "VES"
)

// Currencies binds each appointment modality to its settlement unit.
type Currencies struct {
	Virtual  string
	InPerson string
}

func DefaultCurrencies() Currencies {
	return Currencies{
		Virtual:  DefaultVirtualCurrency,
		InPerson: DefaultInPersonCurrency,
	}
}

var currencySymbols = map[string]string{
	"USD": "$",
	"VES": "Bs. ",
	"EUR": "€",
	"MXN": "MX$",
	"COP": "COL$",
	"BRL": "R$",
}

// CurrencyForModality derives the invoice display currency from the
// linked appointment's modality. The currency is never stored or mutated
// independently.
//
// This function is PURE:
// - No side effects
// - No DB access
// - Fully deterministic
func CurrencyForModality(modality appointmentdomain.Modality, currencies Currencies) string {
	if modality == appointmentdomain.ModalityVirtual {
		return currencies.Virtual
	}
	return currencies.InPerson
}

// FormatAmount renders an amount as a symbol-prefixed string with exactly
// two fraction digits. No exchange-rate conversion ever happens here; the
// amount is formatted as-is in whichever currency was derived.
func FormatAmount(amount decimal.Decimal, currency string) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	return fmt.Sprintf("%s%s", symbol, amount.StringFixed(2))
}
