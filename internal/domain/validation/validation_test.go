package validation

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineReq struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type sampleReq struct {
	Phone string    `json:"phone" validate:"required,len=11,numeric"`
	Email string    `json:"email,omitempty" validate:"omitempty,email"`
	Items []lineReq `json:"items" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	err := Struct(sampleReq{
		Phone: "0171",
		Email: "nope",
		Items: []lineReq{{Quantity: 1}, {Quantity: 0}},
	})

	verr, ok := As(err)
	require.True(t, ok)

	got := map[string]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, "must be exactly 11 characters", got["phone"])
	assert.Equal(t, "must be a valid email address", got["email"])
	assert.Equal(t, "must be at least 1", got["items[1].quantity"])
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(sampleReq{Phone: "01712345678", Items: []lineReq{{Quantity: 2}}})
	require.NoError(t, err)
}

func TestError_Err(t *testing.T) {
	var empty Error
	assert.NoError(t, empty.Err())

	e := New("name", "is required")
	e.Add("phone", "is required")
	require.Error(t, e.Err())
	assert.Equal(t, "validation failed: name: is required; phone: is required", e.Error())

	wrapped := errors.Wrap(e, "create order")
	verr, ok := As(wrapped)
	require.True(t, ok)
	assert.Len(t, verr.Fields, 2)
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("email", "a@b.io", "required,email"))

	verr, ok := As(Var("email", "a-at-b", "required,email"))
	require.True(t, ok)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Equal(t, "must be a valid email address", verr.Fields[0].Message)
}
