//go:build android
// +build android

package android

/*
#cgo LDFLAGS: -landroid

#include <jni.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"

	"gioui.org/app"
	"git.wow.st/gmp/jni"

	"bgservice/internal/controller"
	"bgservice/internal/logger"
	"bgservice/internal/notification"
)

//go:generate javac -source 8 -target 8 -bootclasspath $ANDROID_HOME/platforms/android-34/android.jar -d $TEMP/bgservice_android/classes ServiceBridge.java
//go:generate jar cf bgservice_android.jar -C $TEMP/bgservice_android/classes .

const bridgeClass = "org/gioui/x/bgservice/ServiceBridge"

// JNI callbacks arrive without any Go context, so the attached lifecycle is
// held here. Only one service class exists per application.
var (
	attachMu sync.RWMutex
	attached controller.Lifecycle
)

func lifecycle() controller.Lifecycle {
	attachMu.RLock()
	defer attachMu.RUnlock()
	return attached
}

// Host drives ServiceBridge.BackgroundService.
type Host struct{}

// New returns the Android host.
func New() *Host {
	return &Host{}
}

// Attach routes the Java service callbacks to l. A later call replaces l.
func (h *Host) Attach(l controller.Lifecycle) {
	attachMu.Lock()
	defer attachMu.Unlock()
	attached = l
}

// Available reports true: services are an OS facility on Android.
func (h *Host) Available() bool {
	return true
}

// Start is a no-op; the Android service manager is always running.
func (h *Host) Start(context.Context) error {
	return nil
}

// Stop is a no-op.
func (h *Host) Stop() {}

// RequestStart sends a start intent. Android may refuse background starts
// by throwing, which surfaces here as an error.
func (h *Host) RequestStart(context.Context) error {
	return callBridge("startService", "(Landroid/content/Context;)V", func(jni.Env) []jni.Value {
		return []jni.Value{jni.Value(app.AppContext())}
	})
}

// RequestStop sends a stop intent.
func (h *Host) RequestStop(context.Context) error {
	return callBridge("stopService", "(Landroid/content/Context;)V", func(jni.Env) []jni.Value {
		return []jni.Value{jni.Value(app.AppContext())}
	})
}

func loadBridge(env jni.Env) (jni.Class, error) {
	return jni.LoadClass(env, jni.ClassLoaderFor(env, jni.Object(app.AppContext())), bridgeClass)
}

// callBridge invokes a static void method of ServiceBridge. args builds the
// call arguments inside the JNI environment so Java strings and arrays can
// be allocated there.
func callBridge(name, sig string, args func(env jni.Env) []jni.Value) error {
	err := jni.Do(jni.JVMFor(app.JavaVM()), func(env jni.Env) error {
		class, err := loadBridge(env)
		if err != nil {
			return err
		}
		method := jni.GetStaticMethodID(env, class, name, sig)
		return jni.CallStaticVoidMethod(env, class, method, args(env)...)
	})
	if err != nil {
		return fmt.Errorf("ServiceBridge.%s: %w", name, err)
	}
	return nil
}

// instance forwards to the live BackgroundService through ServiceBridge
// statics; the bridge throws if the service has already been destroyed.
type instance struct{}

func (instance) CreateNotificationChannel(_ context.Context, ch notification.Channel) error {
	return callBridge("createNotificationChannel", "(Ljava/lang/String;Ljava/lang/String;I)V", func(env jni.Env) []jni.Value {
		return []jni.Value{
			jni.Value(jni.JavaString(env, ch.ID)),
			jni.Value(jni.JavaString(env, ch.Name)),
			jni.Value(ch.Importance),
		}
	})
}

func (instance) StartForeground(_ context.Context, n notification.Notification) error {
	icon, err := n.Icon.PNG()
	if err != nil {
		return err
	}
	return callBridge("startForeground", "(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;[B)V", func(env jni.Env) []jni.Value {
		return []jni.Value{
			jni.Value(n.ID),
			jni.Value(jni.JavaString(env, n.ChannelID)),
			jni.Value(jni.JavaString(env, n.Title)),
			jni.Value(jni.JavaString(env, n.Text)),
			jni.Value(jni.NewByteArray(env, icon)),
		}
	})
}

func (instance) StopForeground(_ context.Context, removeNotification bool) error {
	return callBridge("stopForeground", "(Z)V", func(jni.Env) []jni.Value {
		return []jni.Value{boolValue(removeNotification)}
	})
}

func boolValue(b bool) jni.Value {
	if b {
		return jni.Value(1)
	}
	return jni.Value(0)
}

//export Java_org_gioui_x_bgservice_ServiceBridge_nativeOnCreate
func Java_org_gioui_x_bgservice_ServiceBridge_nativeOnCreate(env *C.JNIEnv, class C.jclass) {
	log := logger.WithComponent("android-host")
	l := lifecycle()
	if l == nil {
		log.Warn().Msg("Service created with no lifecycle attached")
		return
	}
	l.OnCreate(instance{})
}

//export Java_org_gioui_x_bgservice_ServiceBridge_nativeOnStartCommand
func Java_org_gioui_x_bgservice_ServiceBridge_nativeOnStartCommand(env *C.JNIEnv, class C.jclass) {
	if l := lifecycle(); l != nil {
		l.OnStartCommand()
	}
}

//export Java_org_gioui_x_bgservice_ServiceBridge_nativeOnDestroy
func Java_org_gioui_x_bgservice_ServiceBridge_nativeOnDestroy(env *C.JNIEnv, class C.jclass) {
	if l := lifecycle(); l != nil {
		l.OnDestroy()
	}
}
