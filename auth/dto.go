package auth

// SignupForm is the body of POST /signup.
// bcrypt only looks at the first 72 bytes of a password, so longer ones are rejected.
type SignupForm struct {
	Username string `form:"username" validate:"required,max=30"`
	Password string `form:"password" validate:"required,max=72"`
}

// LoginForm is the body of POST /login.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// credentialsView is the Data of the signup and login pages.
type credentialsView struct {
	Username string
}
