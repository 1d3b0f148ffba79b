package chat

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/kailas-cloud/tablefinder/internal/domain/locale"
)

type messageKey int

const (
	msgFound messageKey = iota
	msgNoMatches
	msgFailure
	msgInsufficientInput
	msgInvalidLocation
	msgBusy
)

// Keyed by locale.Key. Locales without an entry use English.
var messages = map[string]map[messageKey]string{
	"zh-TW": {
		msgFound:             "為您找到 %d 家符合條件的餐廳",
		msgNoMatches:         "抱歉，沒有找到符合條件的餐廳，請嘗試調整搜尋條件",
		msgFailure:           "搜尋服務發生錯誤，請稍後再試",
		msgInsufficientInput: "請告訴我您想吃什麼，或提供您的位置",
		msgInvalidLocation:   "無法辨識您提供的位置，請確認經緯度是否正確",
		msgBusy:              "您的上一個請求仍在處理中，請稍後再試",
	},
	"zh-CN": {
		msgFound:             "为您找到 %d 家符合条件的餐厅",
		msgNoMatches:         "抱歉，没有找到符合条件的餐厅，请尝试调整搜索条件",
		msgFailure:           "搜索服务发生错误，请稍后再试",
		msgInsufficientInput: "请告诉我您想吃什么，或提供您的位置",
		msgInvalidLocation:   "无法识别您提供的位置，请确认经纬度是否正确",
		msgBusy:              "您的上一个请求仍在处理中，请稍后再试",
	},
	"en": {
		msgFound:             "Found %d restaurants matching your request",
		msgNoMatches:         "Sorry, no restaurants matched your request. Try adjusting your criteria.",
		msgFailure:           "The search service ran into a problem. Please try again later.",
		msgInsufficientInput: "Tell me what you would like to eat or share your location.",
		msgInvalidLocation:   "The location you provided could not be understood. Please check the coordinates.",
		msgBusy:              "Your previous request is still being processed. Please try again.",
	},
}

func message(lang language.Tag, key messageKey, args ...any) string {
	table, ok := messages[locale.Key(lang)]
	if !ok {
		table = messages["en"]
	}
	if len(args) == 0 {
		return table[key]
	}
	return fmt.Sprintf(table[key], args...)
}
