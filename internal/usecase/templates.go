package usecase

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pricealert/backend/internal/domain"
)

var templateFuncs = template.FuncMap{
	"won": func(price int64) string { return humanize.Comma(price) + "원" },
	"ts":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

var priceAlertTemplate = template.Must(template.New("priceAlert").Funcs(templateFuncs).Parse(
	`안녕하세요, 최저가 알림이입니다.

관심상품 '{{ .Keyword }}'의 최신 가격 정보를 알려드립니다.
{{ range .Results }}
【{{ .Site.DisplayName }}】
상품명: {{ .Title }}
가격: {{ won .Price }}
링크: {{ .ProductURL }}
조회시각: {{ ts .FetchedAt }}
{{ end }}
---
본 알림은 자동으로 발송되었습니다.
배송비, 카드할인, 쿠폰 등은 포함되지 않은 표시가 기준입니다.`,
))

var statusAlertTemplate = template.Must(template.New("statusAlert").Parse(
	`안녕하세요, 최저가 알림이입니다.

관심상품 '{{ .Keyword }}'에 문제가 발생했습니다.

상태: {{ .Status }}
내용: {{ .Message }}

프로그램을 확인해주시기 바랍니다.

---
본 알림은 자동으로 발송되었습니다.`,
))

const testEmailBody = `안녕하세요, 최저가 알림이입니다.

이메일 설정이 정상적으로 완료되었습니다.
실제 가격 알림은 설정하신 주기에 따라 자동으로 발송됩니다.

감사합니다.`

// PriceAlertEmail composes the periodic price notification
func PriceAlertEmail(keyword string, results []domain.PriceResult) (subject, body string, err error) {
	var buf bytes.Buffer
	data := struct {
		Keyword string
		Results []domain.PriceResult
	}{keyword, results}
	if err := priceAlertTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render price alert: %w", err)
	}
	return fmt.Sprintf("[최저가 알림] %s", keyword), strings.TrimSpace(buf.String()), nil
}

// StatusAlertEmail composes the notice sent when tracking needs attention
func StatusAlertEmail(keyword string, status domain.Status, message string) (subject, body string, err error) {
	var buf bytes.Buffer
	data := struct {
		Keyword string
		Status  string
		Message string
	}{keyword, status.Label(), message}
	if err := statusAlertTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render status alert: %w", err)
	}
	return fmt.Sprintf("[상태 알림] %s - %s", keyword, status.Label()), strings.TrimSpace(buf.String()), nil
}

// TestEmail composes the message used to check email settings
func TestEmail() (subject, body string) {
	return "[테스트] 최저가 알림이 이메일 설정 확인", testEmailBody
}
