package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
)

func TestCustomTags(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input interface{}
		field string
	}{
		{"valid login", &model.LoginRequest{PhoneNumber: "0712 345 678", Pin: "1234"}, ""},
		{"bad phone", &model.LoginRequest{PhoneNumber: "12ab", Pin: "1234"}, "phone_number"},
		{"short pin", &model.LoginRequest{PhoneNumber: "254712345678", Pin: "12"}, "pin"},
		{"missing pin", &model.LoginRequest{PhoneNumber: "254712345678"}, "pin"},
		{"bad role", &model.CreateTeamMemberRequest{Name: "Ann", Role: "Nurse"}, "role"},
		{"good role", &model.CreateTeamMemberRequest{Name: "Ann", Role: model.RoleAnaesthetist}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields := Fields(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)
		})
	}
}

func TestStatusTags(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	status := model.CaseStatus("Archived")
	err = v.Struct(&model.AdminUpdateCaseRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, "status: must be one of Upcoming, Completed, Cancelled, Referred, Invoiced, Paid", Message(err))

	paid := model.PaymentStatusPartiallyPaid
	ok := model.CaseStatusInvoiced
	assert.NoError(t, v.Struct(&model.AdminUpdateCaseRequest{Status: &ok, PaymentStatus: &paid}))
}

func TestMessage(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Struct(&model.RoleNamesRequest{})
	assert.Equal(t, "names: is required", Message(err))

	assert.Equal(t, "invalid request body", Message(assert.AnError))
	assert.Nil(t, Fields(assert.AnError))
}
