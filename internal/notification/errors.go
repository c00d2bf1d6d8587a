package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 通知エンジンが返すエラー。呼び出し元は errors.Is で判定する。
var (
	// ErrMissingParameter は必須のIDやフィールドが指定されていないことを表す。
	ErrMissingParameter = errors.New("必須パラメータが指定されていません")
	// ErrMissingTenant はテナントIDが指定されていないことを表す。ErrMissingParameter としても判定できる。
	ErrMissingTenant = fmt.Errorf("%w: テナントID", ErrMissingParameter)
	// ErrInvalidNotificationType は通知種別が EMAIL / SMS / IN_APP / PUSH のいずれでもないことを表す。
	ErrInvalidNotificationType = errors.New("通知種別が不正です")
	// ErrNotificationNotFound は通知が存在しないか論理削除済みであることを表す。
	ErrNotificationNotFound = errors.New("通知が見つかりません")
	// ErrGroupNotFound はテナント内にグループが存在しないことを表す。
	ErrGroupNotFound = errors.New("グループが見つかりません")
	// ErrDeliveryRecordNotFound は受信者に対する配信状態が存在しないことを表す。
	ErrDeliveryRecordNotFound = errors.New("配信状態が見つかりません")
	// ErrStoreUnavailable はストレージの一時的な障害やタイムアウトを表す。
	ErrStoreUnavailable = errors.New("ストレージが利用できません")
	// ErrInternalFailure は想定外の内部エラーを表す。
	ErrInternalFailure = errors.New("内部エラーが発生しました")
)

// clientErrors は呼び出し側の誤りを表すエラー。判定順に並べる。
var clientErrors = []error{
	ErrMissingTenant,
	ErrMissingParameter,
	ErrInvalidNotificationType,
	ErrNotificationNotFound,
	ErrGroupNotFound,
	ErrDeliveryRecordNotFound,
}

// storeErr はストレージ操作のエラーを ErrStoreUnavailable でラップする。
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// classify は公開操作の戻り値となるエラーを分類済みのエラーに変換する。
// 分類できないエラーは ErrInternalFailure になる。
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrInternalFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrInternalFailure, op, err)
}

// httpStatus はエラーをHTTPステータスとクライアント向けメッセージに変換する。
func httpStatus(err error) (int, string) {
	for _, known := range clientErrors {
		if !errors.Is(err, known) {
			continue
		}
		switch known {
		case ErrNotificationNotFound, ErrGroupNotFound, ErrDeliveryRecordNotFound:
			return http.StatusNotFound, known.Error()
		default:
			return http.StatusBadRequest, known.Error()
		}
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return http.StatusServiceUnavailable, "ストレージが一時的に利用できません"
	}
	return http.StatusInternalServerError, "内部サーバーエラーが発生しました"
}
