package domain

// Address is a postal address.
type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Church is the tenant a user administers.
type Church struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Denomination string   `json:"denomination,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

// TenantAssociation is the church a user is attached to plus the user's
// role inside it.
type TenantAssociation struct {
	Church Church `json:"church"`
	Role   string `json:"role"`
}

// Clone returns a deep copy.
func (t *TenantAssociation) Clone() *TenantAssociation {
	if t == nil {
		return nil
	}
	c := *t
	if t.Church.Address != nil {
		a := *t.Church.Address
		c.Church.Address = &a
	}
	return &c
}

// ChurchPatch is a partial update of the church record.
type ChurchPatch struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Email        *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Denomination *string  `json:"denomination,omitempty" validate:"omitempty,max=120"`
	Address      *Address `json:"address,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ChurchPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Denomination == nil && p.Address == nil
}
