/*
 * Copyright (c) 2026, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserFileWatcher_NotifiesOnExternalWrite(t *testing.T) {
	m := testManager(t)

	watcher, err := NewUserFileWatcher(m, testLogger())
	require.NoError(t, err)
	defer watcher.Close()

	notified := make(chan struct{}, 1)
	watcher.OnChange(userSettingsPrimaryName, func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	loader := NewUserSettingsLoader(m, testLogger())
	require.NoError(t, loader.Save(UserSettings{SourceAutoUpdateIntervalInMinutes: 7, VisualProgressBar: "retro"}))

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a notification after an external settings write")
	}
}

func TestUserFileWatcher_IgnoresUnregisteredNames(t *testing.T) {
	m := testManager(t)

	watcher, err := NewUserFileWatcher(m, testLogger())
	require.NoError(t, err)
	defer watcher.Close()

	notified := make(chan struct{}, 1)
	watcher.OnChange("settings.json", func() {
		notified <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	stream, err := m.Open(UserFile, "unrelated.json")
	require.NoError(t, err)
	_, err = stream.Set([]byte(`{}`))
	require.NoError(t, err)

	select {
	case <-notified:
		t.Fatal("unexpected notification for an unregistered file name")
	case <-time.After(250 * time.Millisecond):
	}
}
