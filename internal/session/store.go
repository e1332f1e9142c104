// Package session はログイン状態を管理するプロセス内セッションストアを提供する。
//
// Storeは「誰がログインしているか」の唯一の権威であり、
// 4つの操作（メールサインイン、メールサインアップ、Googleサインイン、ログアウト）と
// 購読可能な状態値を公開する。成功した認証はStorageに固定キーで永続化され、
// 次回起動時にInitで復元される。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// StorageKey はセッションレコードを保存する固定キー。
const StorageKey = "clemmont_session"

// 認証操作が呼び出し元に返すエラー。UI側がコードをキーにローカライズする。
var (
	// ErrInvalidCredentials は認証情報の不一致を表す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailAlreadyInUse はメールアドレスの重複登録を表す。
	ErrEmailAlreadyInUse = errors.New("email already in use")
	// ErrTransport はネットワーク/コラボレータの障害を表す。
	ErrTransport = errors.New("transport error")
)

// Phase はストアの状態を表す。
type Phase int

const (
	// PhaseUnknown は初期状態。永続化されたセッションの確認前。
	PhaseUnknown Phase = iota
	// PhaseAuthenticating は認証操作の実行中。
	PhaseAuthenticating
	// PhaseAuthenticated は認証済み。
	PhaseAuthenticated
	// PhaseAnonymous は未認証。
	PhaseAnonymous
)

// String はPhaseの文字列表現を返す。
func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Record は永続化されるセッションレコード。
type Record struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

// State はストアの状態スナップショット。
// Sessionが非nilなのはPhaseAuthenticatedの場合のみ。
type State struct {
	Phase   Phase
	Session *Record
}

// Authenticator は認証コラボレータのインターフェース。
// 各操作は成功時にセッションレコードを返し、
// 失敗時はErrInvalidCredentials / ErrEmailAlreadyInUse / ErrTransportのいずれかを返す。
type Authenticator interface {
	SignInWithEmail(ctx context.Context, email, password string) (*Record, error)
	SignUpWithEmail(ctx context.Context, username, email, password string) (*Record, error)
	SignInWithGoogle(ctx context.Context) (*Record, error)
	SignOut(ctx context.Context, sessionID string) error
	// Verify は永続化されたセッションIDがまだ有効かを確認する。
	Verify(ctx context.Context, sessionID string) (*Record, error)
}

// Navigator は認証成功後の画面遷移コラボレータのインターフェース。
type Navigator interface {
	// NavigateToDashboard は保護されたダッシュボード画面へ遷移する。
	NavigateToDashboard()
}

// Listener は状態変化の通知を受け取る関数。
type Listener func(State)

// Store はセッション状態のプロセス内ストア。
//
// 同時実行ポリシー: 認証操作が実行中に別の操作が発行された場合、
// 後から完了した方ではなく「最後に発行された」操作の結果だけが適用される
// （単調増加するシーケンストークンで判定する）。
// 追い越された古い操作の結果は状態にもStorageにも反映されない。
type Store struct {
	auth      Authenticator
	storage   Storage
	navigator Navigator

	mu        sync.Mutex
	phase     Phase
	session   *Record
	seq       uint64 // 発行済み操作の最新シーケンス
	listeners map[int]Listener
	nextLis   int

	// notifyMu は通知の配送順序を状態遷移の順序と一致させる。
	// mu保持中に獲得し、mu解放後にリスナーを呼び出してから解放する。
	notifyMu sync.Mutex
}

// NewStore はStoreを生成する。初期状態はPhaseUnknown。
// navigatorはnil許容で、nilの場合は画面遷移をスキップする。
func NewStore(auth Authenticator, storage Storage, navigator Navigator) *Store {
	return &Store{
		auth:      auth,
		storage:   storage,
		navigator: navigator,
		phase:     PhaseUnknown,
		listeners: make(map[int]Listener),
	}
}

// Init は永続化されたセッションを確認し、初期状態を確定する。
// 有効なレコードがあればPhaseAuthenticated、なければPhaseAnonymousへ遷移する。
// 壊れたレコードや検証失敗はレコードを破棄してPhaseAnonymousとして扱う。
func (s *Store) Init(ctx context.Context) {
	data, ok, err := s.storage.Get(StorageKey)
	if err != nil || !ok {
		if err != nil {
			slog.Warn("failed to read persisted session", slog.String("error", err.Error()))
		}
		s.apply(0, PhaseAnonymous, nil, false)
		return
	}

	rec, err := decodeRecord(data)
	if err != nil {
		slog.Warn("discarding corrupt session record", slog.String("error", err.Error()))
		_ = s.storage.Delete(StorageKey)
		s.apply(0, PhaseAnonymous, nil, false)
		return
	}

	verified, err := s.auth.Verify(ctx, rec.SessionID)
	if err != nil || verified == nil {
		_ = s.storage.Delete(StorageKey)
		s.apply(0, PhaseAnonymous, nil, false)
		return
	}

	s.apply(0, PhaseAuthenticated, verified, false)
}

// Current は現在の状態スナップショットを返す。
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Phase: s.phase, Session: s.session}
}

// Subscribe は状態変化の購読を登録し、解除関数を返す。
// 登録時点の状態が即座に1回通知される。
// 状態遷移の通知は配送順序を保証するロックの保持中に行われるため、
// リスナー内から同期的にストアの操作を呼び出してはならない。
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = fn
	current := State{Phase: s.phase, Session: s.session}
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SignInWithEmail はメール/パスワードでサインインする。
// 成功時はPhaseAuthenticatedへ遷移しセッションを永続化する。
// 認証失敗時はPhaseAnonymousへ遷移しErrInvalidCredentialsを返す。
func (s *Store) SignInWithEmail(ctx context.Context, email, password string) error {
	return s.run(ctx, func(ctx context.Context) (*Record, error) {
		return s.auth.SignInWithEmail(ctx, email, password)
	})
}

// SignUpWithEmail はメール/パスワードでサインアップする。
// メールアドレスが登録済みの場合はErrEmailAlreadyInUseを返し、
// 既存レコードは変更されない。
func (s *Store) SignUpWithEmail(ctx context.Context, username, email, password string) error {
	return s.run(ctx, func(ctx context.Context) (*Record, error) {
		return s.auth.SignUpWithEmail(ctx, username, email, password)
	})
}

// SignInWithGoogle はGoogleアカウントでサインインする。
// 外部IdPが確認した身元は有効とみなすため、認証情報の不一致では失敗しない。
func (s *Store) SignInWithGoogle(ctx context.Context) error {
	return s.run(ctx, func(ctx context.Context) (*Record, error) {
		return s.auth.SignInWithGoogle(ctx)
	})
}

// Logout はセッションを破棄しPhaseAnonymousへ遷移する。
// Storageの固定キーも削除される。サーバー側のセッション破棄失敗は
// ローカル状態のクリアを妨げない。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	token := s.seq
	current := s.session
	s.mu.Unlock()

	if current != nil {
		if err := s.auth.SignOut(ctx, current.SessionID); err != nil {
			slog.Warn("failed to revoke server session", slog.String("error", err.Error()))
		}
	}

	// 固定キーの削除はトークン検査と同じクリティカルセクションで行う。
	// ここで直接Deleteすると、後続のサインインが永続化したレコードを
	// 追い越されたログアウトが消してしまう。
	s.apply(token, PhaseAnonymous, nil, true)
	return nil
}

// run は認証操作を共通の状態遷移プロトコルで実行する。
// Authenticatingへ遷移 → コラボレータ呼び出し → 結果適用（最新操作のみ）。
func (s *Store) run(ctx context.Context, op func(ctx context.Context) (*Record, error)) error {
	s.mu.Lock()
	s.seq++
	token := s.seq
	s.phase = PhaseAuthenticating
	s.session = nil
	listeners := s.snapshotListeners()
	state := State{Phase: PhaseAuthenticating}
	s.notifyMu.Lock()
	s.mu.Unlock()

	notify(listeners, state)
	s.notifyMu.Unlock()

	rec, err := op(ctx)
	if err != nil {
		s.apply(token, PhaseAnonymous, nil, false)
		return s.classify(err)
	}
	if rec == nil {
		s.apply(token, PhaseAnonymous, nil, false)
		return ErrTransport
	}

	applied := s.apply(token, PhaseAuthenticated, rec, true)
	if applied && s.navigator != nil {
		s.navigator.NavigateToDashboard()
	}
	return nil
}

// apply は操作結果を状態に反映する。
// tokenが最新シーケンスより古い場合（後続の操作に追い越された場合）は
// 何も適用せずfalseを返す。token 0は初期化専用で、未操作時のみ適用される。
//
// Storageへの書き込みはトークン検査と同じクリティカルセクションで行う。
// ロックを解放してから書くと、追い越された古い操作が新しい操作のSetの後に
// 古いレコードを書き戻し、Storageとメモリ状態が乖離する。
// persist指定時、recがnilなら固定キーを削除する（ログアウト）。
func (s *Store) apply(token uint64, phase Phase, rec *Record, persist bool) bool {
	s.mu.Lock()
	if token < s.seq {
		s.mu.Unlock()
		return false
	}
	s.phase = phase
	s.session = rec

	if persist {
		if rec != nil {
			if data, err := encodeRecord(rec); err == nil {
				if err := s.storage.Set(StorageKey, data); err != nil {
					slog.Warn("failed to persist session", slog.String("error", err.Error()))
				}
			}
		} else {
			if err := s.storage.Delete(StorageKey); err != nil {
				slog.Warn("failed to clear persisted session", slog.String("error", err.Error()))
			}
		}
	}

	listeners := s.snapshotListeners()
	state := State{Phase: phase, Session: rec}

	// mu保持中にnotifyMuを獲得することで、通知の順序が
	// 状態遷移の順序と必ず一致する。リスナーの呼び出し自体はmu解放後。
	s.notifyMu.Lock()
	s.mu.Unlock()

	notify(listeners, state)
	s.notifyMu.Unlock()
	return true
}

// classify はコラボレータのエラーを呼び出し元向けのタクソノミに変換する。
// 既知のエラー種別以外は全てErrTransportに集約し、内部エラーの詳細は漏らさない。
func (s *Store) classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, ErrEmailAlreadyInUse):
		return ErrEmailAlreadyInUse
	default:
		slog.Warn("auth collaborator failure", slog.String("error", err.Error()))
		return ErrTransport
	}
}

// snapshotListeners はリスナー一覧のコピーを返す。mu保持中に呼ぶこと。
func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, state State) {
	for _, fn := range listeners {
		fn(state)
	}
}
