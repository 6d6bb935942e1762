package view

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otcheredev/equipment-console/internal/authprovider"
	"github.com/otcheredev/equipment-console/internal/tenant"
)

// User facing messages
const (
	MsgNameRequired = "グループ名を入力してください"
	MsgCreated      = "設備グループを作成しました"
	MsgUpdated      = "設備グループを更新しました"
	MsgDeleted      = "設備グループを削除しました"
	MsgSaveFailed   = "操作に失敗しました"
	MsgDeleteFailed = "削除に失敗しました"
	MsgLoadFailed   = "エラーが発生しました"

	MsgLoginSucceeded = "ログイン成功"
	MsgLoginRedirect  = "ダッシュボードへ移動します"
	MsgLoginFailed    = "ログイン失敗"
	MsgNoTenant       = "所属するテナントが見つかりません。管理者に連絡してください。"
	MsgAuthFailed     = "認証に失敗しました"
)

// Level is the kind of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message shown once to the user
type Notification struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Success returns a success notification
func Success(title string) Notification {
	return Notification{Level: LevelSuccess, Title: title}
}

// Error returns an error notification
func Error(title string) Notification {
	return Notification{Level: LevelError, Title: title}
}

// Empty reports whether there is nothing to show
func (n Notification) Empty() bool {
	return n.Title == ""
}

// LoginSucceeded is shown after a successful login
func LoginSucceeded() Notification {
	return Notification{Level: LevelSuccess, Title: MsgLoginSucceeded, Description: MsgLoginRedirect}
}

// LoginFailed describes why a login attempt failed
func LoginFailed(err error) Notification {
	n := Notification{Level: LevelError, Title: MsgLoginFailed, Description: MsgAuthFailed}
	var perr *authprovider.Error
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		n.Description = MsgNoTenant
	case errors.Is(err, authprovider.ErrInvalidCredentials):
		n.Description = "Invalid login credentials"
	case errors.As(err, &perr) && perr.Message != "":
		n.Description = perr.Message
	}
	return n
}

// FlashCookie names the cookie carrying a notification to the next page
const FlashCookie = "console_flash"

// SetFlash stores n for the next page the browser loads
func SetFlash(w http.ResponseWriter, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the pending notification, if any, and clears it
func PopFlash(w http.ResponseWriter, r *http.Request) Notification {
	c, err := r.Cookie(FlashCookie)
	if err != nil {
		return Notification{}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Notification{}
	}
	var n Notification
	if json.Unmarshal(data, &n) != nil {
		return Notification{}
	}
	return n
}
