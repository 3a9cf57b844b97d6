package models

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&Person{},
		&User{},
		&Category{},
		&ImageGroup{},
		&Request{},
		&MovableProperty{},
		&WorkPhoto{},
		&Report{},
		&IdentityCardPhoto{},
	}
}
