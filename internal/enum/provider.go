package enum

type EmailProvider string

const (
	ProviderGmail   EmailProvider = "gmail"
	ProviderOutlook EmailProvider = "outlook"
	ProviderCustom  EmailProvider = "custom"
)

func (t EmailProvider) String() string {
	return string(t)
}

func DecodeEmailProvider(s string) EmailProvider {
	switch s {
	case "gmail":
		return ProviderGmail
	case "outlook":
		return ProviderOutlook
	default:
		return ProviderCustom
	}
}

type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthOAuth    AuthType = "oauth"
)

func (t AuthType) String() string {
	return string(t)
}

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecuritySSL      EmailSecurity = "ssl"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}
