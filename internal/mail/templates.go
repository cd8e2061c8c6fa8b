package mail

import "fmt"

func NewPasswordResetMail(to, host, token string) Mail {
	return Mail{
		To:      to,
		Subject: "Reset your DeepRef password",
		Body: fmt.Sprintf(
			"A password reset was requested for your DeepRef account.\n\n"+
				"Use the following link within one hour to choose a new password:\n\n"+
				"%v/reset-password?token=%v\n\n"+
				"If you did not request this, you can ignore this mail.\n",
			host, token),
	}
}

func NewPasswordChangedMail(to string) Mail {
	return Mail{
		To:      to,
		Subject: "Your DeepRef password was changed",
		Body: "The password of your DeepRef account was just changed and all other " +
			"sessions have been signed out.\n\n" +
			"If this was not you, reset your password immediately.\n",
	}
}

func NewLoginLinkMail(to, host, token string) Mail {
	return Mail{
		To:      to,
		Subject: "Your DeepRef login link",
		Body: fmt.Sprintf(
			"Use the following link within 15 minutes to sign in to DeepRef:\n\n"+
				"%v/login-link?token=%v\n\n"+
				"The link can be used once. If you did not request it, ignore this mail.\n",
			host, token),
	}
}

func NewVerifyEmailMail(to, host, token string) Mail {
	return Mail{
		To:      to,
		Subject: "Verify your DeepRef email address",
		Body: fmt.Sprintf(
			"Welcome to DeepRef!\n\n"+
				"Please confirm your email address:\n\n%v/verify-email?token=%v\n",
			host, token),
	}
}
