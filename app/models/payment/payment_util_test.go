package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := Payment{
		UserID:   "user-1",
		OrderNo:  "O1001",
		Method:   string(MethodVNPay),
		Amount:   100000,
		Currency: CurrencyVND,
	}
	assert.NoError(t, valid.Validate())

	badMethod := valid
	badMethod.Method = "bitcoin"
	assert.Error(t, badMethod.Validate())

	badCurrency := valid
	badCurrency.Currency = "USD"
	assert.Error(t, badCurrency.Validate())

	negative := valid
	negative.Amount = -1
	assert.Error(t, negative.Validate())

	noOrder := valid
	noOrder.OrderNo = ""
	assert.Error(t, noOrder.Validate())
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusFailed, StatusCanceled, StatusRefunded} {
		p := Payment{Status: string(status)}
		assert.True(t, p.IsTerminal(), "status %s", status)
	}

	pending := Payment{Status: string(StatusPending)}
	assert.False(t, pending.IsTerminal())
	assert.True(t, pending.IsPending())
}
