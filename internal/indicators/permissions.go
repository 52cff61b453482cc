package indicators

import "strings"

// dangerousPermissions 平台权限保护级别为 dangerous 的权限参考表（短名）。
// 静态配置，加载一次后所有 worker 只读共享。
var dangerousPermissions = map[string]struct{}{
	"SEND_SMS": {}, "READ_SMS": {}, "RECEIVE_SMS": {}, "RECEIVE_WAP_PUSH": {}, "RECEIVE_MMS": {},
	"READ_CONTACTS": {}, "WRITE_CONTACTS": {},
	"READ_CALL_LOG": {}, "WRITE_CALL_LOG": {}, "PROCESS_OUTGOING_CALLS": {}, "CALL_PHONE": {},
	"READ_PHONE_STATE": {}, "READ_PHONE_NUMBERS": {}, "ANSWER_PHONE_CALLS": {},
	"ACCESS_FINE_LOCATION": {}, "ACCESS_COARSE_LOCATION": {}, "ACCESS_BACKGROUND_LOCATION": {},
	"CAMERA": {}, "RECORD_AUDIO": {},
	"WRITE_EXTERNAL_STORAGE": {}, "READ_EXTERNAL_STORAGE": {},
	"BIND_DEVICE_ADMIN": {}, "SYSTEM_ALERT_WINDOW": {}, "BIND_ACCESSIBILITY_SERVICE": {},
	"GET_TASKS": {}, "KILL_BACKGROUND_PROCESSES": {}, "INSTALL_PACKAGES": {}, "REQUEST_INSTALL_PACKAGES": {},
	"CHANGE_WIFI_STATE": {}, "CHANGE_NETWORK_STATE": {}, "ACCESS_WIFI_STATE": {},
}

// countDangerousPermissions 统计声明权限中属于 dangerous 级别的数量。
// 权限可能是全限定名（android.permission.SEND_SMS），取最后一段比较。
func countDangerousPermissions(permissions []string) int {
	count := 0
	for _, p := range permissions {
		short := p
		if idx := strings.LastIndex(p, "."); idx >= 0 {
			short = p[idx+1:]
		}
		if _, ok := dangerousPermissions[short]; ok {
			count++
		}
	}
	return count
}
